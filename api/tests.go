package api

import (
	"bytes"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"psychotest/middleware"
	"psychotest/models"
	"psychotest/utils"
)

// AnswerRequest is the body of POST /api/tests/:slug/answer.
type AnswerRequest struct {
	QuestionNumber int    `json:"questionNumber" binding:"required"`
	Answer         string `json:"answer" binding:"required"`
}

// ListTestsHandler lists active tests with the caller's progress when signed in.
// GET /api/tests
func (h *APIHandler) ListTestsHandler(c *gin.Context) {
	var userID uint
	if claims, ok := middleware.CurrentClaims(c); ok {
		userID = claims.ID
	}
	tests, err := h.attemptService.ListTests(c.Request.Context(), userID)
	if err != nil {
		sendServiceError(c, err, "Failed to list tests.")
		return
	}
	respond(c, "Tests retrieved successfully", tests)
}

// GetTestHandler returns a test, its questions and the caller's attempt.
// GET /api/tests/:slug
func (h *APIHandler) GetTestHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	detail, err := h.attemptService.GetTest(c.Request.Context(), who.ID, c.Param("slug"))
	if err != nil {
		sendServiceError(c, err, "Failed to load test.")
		return
	}
	respond(c, "Test retrieved successfully", detail)
}

// StartTestHandler starts or resumes an attempt.
// POST /api/tests/:slug/start
func (h *APIHandler) StartTestHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	if h.users != nil {
		if err := h.users.EnsureUser(c.Request.Context(), models.User{ID: who.ID, Email: who.Email, Name: who.Name}); err != nil {
			utils.SendJSONError(c, http.StatusInternalServerError, "Failed to start test.", err)
			return
		}
	}
	result, err := h.attemptService.Start(c.Request.Context(), who.ID, c.Param("slug"))
	if err != nil {
		sendServiceError(c, err, "Failed to start test.")
		return
	}
	message := "Test started"
	switch {
	case result.AlreadyCompleted:
		message = "Test already completed"
	case result.Resumed:
		message = "Test resumed"
	}
	respond(c, message, result)
}

// SubmitAnswerHandler records one answer; later answers to the same question win.
// POST /api/tests/:slug/answer
func (h *APIHandler) SubmitAnswerHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request: questionNumber and answer are required.", err)
		return
	}
	if err := h.attemptService.RecordAnswer(c.Request.Context(), who.ID, c.Param("slug"), req.QuestionNumber, req.Answer); err != nil {
		sendServiceError(c, err, "Failed to save answer.")
		return
	}
	respond(c, "Answer saved", gin.H{"questionNumber": req.QuestionNumber, "answer": req.Answer})
}

// CompleteTestHandler scores the attempt.
// POST /api/tests/:slug/complete
func (h *APIHandler) CompleteTestHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	result, err := h.attemptService.Complete(c.Request.Context(), who.ID, c.Param("slug"))
	if err != nil {
		sendServiceError(c, err, "Failed to complete test.")
		return
	}
	message := "Test completed"
	if result.AlreadyCompleted {
		message = "Test already completed"
	}
	respond(c, message, result)
}

// GetResultHandler returns the caller's attempt with decoded scores.
// GET /api/tests/:slug/result
func (h *APIHandler) GetResultHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	view, err := h.attemptService.GetResult(c.Request.Context(), who.ID, c.Param("slug"))
	if err != nil {
		sendServiceError(c, err, "Failed to load result.")
		return
	}
	respond(c, "Result retrieved successfully", view)
}

// AnalyzeHandler generates and stores a narrative analysis.
// POST /api/tests/:slug/analyze
func (h *APIHandler) AnalyzeHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	outcome, err := h.analysisService.Analyze(c.Request.Context(), who, c.Param("slug"))
	if err != nil {
		sendServiceError(c, err, "Failed to analyze result.")
		return
	}
	respond(c, "Analysis generated", outcome)
}

// ReportHandler streams the result as a PDF.
// GET /api/tests/:slug/report
func (h *APIHandler) ReportHandler(c *gin.Context) {
	who, ok := caller(c)
	if !ok {
		return
	}
	slug := c.Param("slug")
	var buf bytes.Buffer
	if err := h.reportService.RenderResultPDF(c.Request.Context(), who.ID, slug, &buf); err != nil {
		sendServiceError(c, err, "Failed to render report.")
		return
	}
	log.Printf("INFO: [API] Rendered %s report for user %d (%d bytes).", slug, who.ID, buf.Len())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-result.pdf"`, slug))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
