package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"psychotest/llm"
	"psychotest/middleware"
	"psychotest/repository"
	"psychotest/services"
	"psychotest/utils"
)

// analysisFallbackMessage is shown when no generation provider can be reached.
const analysisFallbackMessage = "AI analysis is temporarily unavailable. Your result has been saved; please try again later."

// APIHandler holds all dependencies for API handlers, such as repositories and services.
type APIHandler struct {
	users           repository.UserRepository
	attemptService  services.AttemptService
	analysisService services.AnalysisService
	reportService   services.ReportService
	adminService    services.AdminService
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(
	users repository.UserRepository,
	attemptService services.AttemptService,
	analysisService services.AnalysisService,
	reportService services.ReportService,
	adminService services.AdminService,
) *APIHandler {
	return &APIHandler{
		users:           users,
		attemptService:  attemptService,
		analysisService: analysisService,
		reportService:   reportService,
		adminService:    adminService,
	}
}

func respond(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": message,
		"data":    data,
	})
}

// sendServiceError maps service errors onto HTTP responses.
func sendServiceError(c *gin.Context, err error, fallback string) {
	var incomplete *services.IncompleteAnswersError
	var providerErr *llm.ProviderError
	switch {
	case errors.As(err, &incomplete):
		utils.SendJSONError(c, http.StatusBadRequest, "Please answer all questions before completing the test.", nil,
			gin.H{"answered": incomplete.Answered, "required": incomplete.Required})
	case errors.Is(err, services.ErrTestNotFound):
		utils.SendJSONError(c, http.StatusNotFound, "Test not found.", err)
	case errors.Is(err, services.ErrAttemptNotFound):
		utils.SendJSONError(c, http.StatusNotFound, "Test has not been started.", err)
	case errors.Is(err, services.ErrNotFound):
		utils.SendJSONError(c, http.StatusNotFound, "Result not found.", err)
	case errors.Is(err, services.ErrAttemptAlreadyCompleted):
		utils.SendJSONError(c, http.StatusConflict, "Test already completed.", err)
	case errors.Is(err, services.ErrNotCompleted):
		utils.SendJSONError(c, http.StatusBadRequest, "Test not yet completed.", err)
	case errors.Is(err, services.ErrInvalidAnswer):
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid answer.", err)
	case errors.Is(err, services.ErrServiceUnavailable):
		utils.SendJSONError(c, http.StatusServiceUnavailable, analysisFallbackMessage, err, gin.H{"fallback": true})
	case errors.As(err, &providerErr):
		utils.SendJSONError(c, http.StatusBadGateway, "AI analysis failed. Please try again later.", err)
	default:
		utils.SendJSONError(c, http.StatusInternalServerError, fallback, err)
	}
}

// caller returns the authenticated identity. Routes using it sit behind RequireUser.
func caller(c *gin.Context) (services.Identity, bool) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		utils.SendJSONError(c, http.StatusUnauthorized, "Authentication required.", nil)
		return services.Identity{}, false
	}
	return services.Identity{ID: claims.ID, Email: claims.Email, Name: claims.Name}, true
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || value == 0 {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid "+name+" parameter.", err)
		return 0, false
	}
	return uint(value), true
}

// HealthHandler reports liveness.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MeHandler returns the identity carried by the access token.
// GET /api/auth/me
func (h *APIHandler) MeHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if h.users != nil {
		user, err := h.users.GetUser(c.Request.Context(), who.ID)
		if err != nil {
			log.Printf("WARN: [API] Failed to load user %d: %v", who.ID, err)
		} else if user != nil {
			respond(c, "OK", user)
			return
		}
	}
	respond(c, "OK", gin.H{"id": who.ID, "email": who.Email, "name": who.Name})
}
