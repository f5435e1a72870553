package api

import (
	"github.com/gin-gonic/gin"

	"psychotest/middleware"
)

// RegisterRoutes wires every endpoint onto r.
func RegisterRoutes(r *gin.Engine, handler *APIHandler, auth *middleware.Authenticator, analyzeLimiter *middleware.UserRateLimiter) {
	r.GET("/health", handler.HealthHandler)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/auth/me", auth.RequireUser(), handler.MeHandler)
		apiGroup.GET("/tests", auth.OptionalUser(), handler.ListTestsHandler)

		testGroup := apiGroup.Group("/tests/:slug", auth.RequireUser())
		{
			testGroup.GET("", handler.GetTestHandler)
			testGroup.POST("/start", handler.StartTestHandler)
			testGroup.POST("/answer", handler.SubmitAnswerHandler)
			testGroup.POST("/complete", handler.CompleteTestHandler)
			testGroup.GET("/result", handler.GetResultHandler)
			testGroup.POST("/analyze", analyzeLimiter.Middleware(), handler.AnalyzeHandler)
			testGroup.GET("/report", handler.ReportHandler)
		}

		adminGroup := apiGroup.Group("/admin", auth.RequireUser(), auth.AdminOnly())
		{
			adminGroup.GET("/users", handler.AdminUsersHandler)
			adminGroup.GET("/results", handler.AdminResultsHandler)
			adminGroup.GET("/tests", handler.AdminTestsHandler)
			adminGroup.GET("/stats", handler.AdminStatsHandler)
			adminGroup.GET("/tests/:testId/questions", handler.AdminQuestionsHandler)
			adminGroup.GET("/results/:resultId/details", handler.AdminResultDetailsHandler)
		}
	}
}
