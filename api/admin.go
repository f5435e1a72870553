package api

import (
	"github.com/gin-gonic/gin"
)

// AdminUsersHandler lists users with their completed test counts.
// GET /api/admin/users
func (h *APIHandler) AdminUsersHandler(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Request.Context())
	if err != nil {
		sendServiceError(c, err, "Failed to list users.")
		return
	}
	respond(c, "Users retrieved successfully", users)
}

// AdminResultsHandler lists completed attempts.
// GET /api/admin/results
func (h *APIHandler) AdminResultsHandler(c *gin.Context) {
	results, err := h.adminService.ListResults(c.Request.Context())
	if err != nil {
		sendServiceError(c, err, "Failed to list results.")
		return
	}
	respond(c, "Results retrieved successfully", results)
}

// AdminTestsHandler lists tests with usage counts.
// GET /api/admin/tests
func (h *APIHandler) AdminTestsHandler(c *gin.Context) {
	tests, err := h.adminService.ListTests(c.Request.Context())
	if err != nil {
		sendServiceError(c, err, "Failed to list tests.")
		return
	}
	respond(c, "Tests retrieved successfully", tests)
}

// AdminStatsHandler returns platform totals.
// GET /api/admin/stats
func (h *APIHandler) AdminStatsHandler(c *gin.Context) {
	overview, err := h.adminService.Overview(c.Request.Context())
	if err != nil {
		sendServiceError(c, err, "Failed to compute statistics.")
		return
	}
	respond(c, "Statistics retrieved successfully", overview)
}

// AdminQuestionsHandler returns the question bank of a test.
// GET /api/admin/tests/:testId/questions
func (h *APIHandler) AdminQuestionsHandler(c *gin.Context) {
	testID, ok := parseUintParam(c, "testId")
	if !ok {
		return
	}
	questions, err := h.adminService.GetQuestions(c.Request.Context(), testID)
	if err != nil {
		sendServiceError(c, err, "Failed to load questions.")
		return
	}
	respond(c, "Questions retrieved successfully", questions)
}

// AdminResultDetailsHandler returns one attempt with every question and answer.
// GET /api/admin/results/:resultId/details
func (h *APIHandler) AdminResultDetailsHandler(c *gin.Context) {
	resultID, ok := parseUintParam(c, "resultId")
	if !ok {
		return
	}
	details, err := h.adminService.GetResultDetails(c.Request.Context(), resultID)
	if err != nil {
		sendServiceError(c, err, "Failed to load result details.")
		return
	}
	respond(c, "Result details retrieved successfully", details)
}
