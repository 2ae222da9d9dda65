package handler

import (
	"net/http"

	"estimator/internal/middleware"
	"estimator/internal/service"
	"estimator/pkg/response"

	"github.com/gin-gonic/gin"
)

type RateAnalysisHandler struct {
	analysisService service.RateAnalysisService
}

func NewRateAnalysisHandler(analysisService service.RateAnalysisService) *RateAnalysisHandler {
	return &RateAnalysisHandler{analysisService: analysisService}
}

func (h *RateAnalysisHandler) RegisterRoutes(router *gin.RouterGroup) {
	analysis := router.Group("/items/:id/rates/:rateId/analysis")
	{
		analysis.GET("", h.GetAnalysis)
		analysis.PUT("", h.SaveAnalysis)
		analysis.POST("/entries", h.AddEntry)
		analysis.POST("/evaluate", h.Evaluate)
	}
	entries := router.Group("/analysis-entries")
	{
		entries.PUT("/:id", h.UpdateEntry)
		entries.DELETE("/:id", h.DeleteEntry)
	}
}

// GetAnalysis evaluates the rate analysis of an item rate from its stored entries
// @Summary      Get rate analysis
// @Tags         rate-analysis
// @Security     BearerAuth
// @Produce      json
// @Param        id      path  string  true  "Item ID"
// @Param        rateId  path  string  true  "Rate ID"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id}/rates/{rateId}/analysis [get]
func (h *RateAnalysisHandler) GetAnalysis(c *gin.Context) {
	res, err := h.analysisService.GetRateAnalysis(c.Request.Context(), c.Param("id"), c.Param("rateId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// SaveAnalysis stores the base rate and final tax of a rate analysis
// @Summary      Save rate analysis
// @Tags         rate-analysis
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                           true  "Item ID"
// @Param        rateId   path  string                           true  "Rate ID"
// @Param        payload  body  service.SaveRateAnalysisRequest  true  "Analysis payload"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id}/rates/{rateId}/analysis [put]
func (h *RateAnalysisHandler) SaveAnalysis(c *gin.Context) {
	var req service.SaveRateAnalysisRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.analysisService.SaveRateAnalysis(c.Request.Context(), c.Param("id"), c.Param("rateId"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// AddEntry appends or inserts an addition, deletion or tax entry
// @Summary      Add rate analysis entry
// @Tags         rate-analysis
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                            true  "Item ID"
// @Param        rateId   path  string                            true  "Rate ID"
// @Param        payload  body  service.RateAnalysisEntryRequest  true  "Entry payload"
// @Success      201  {object}  response.Response
// @Router       /api/items/{id}/rates/{rateId}/analysis/entries [post]
func (h *RateAnalysisHandler) AddEntry(c *gin.Context) {
	var req service.RateAnalysisEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.analysisService.AddEntry(c.Request.Context(), c.Param("id"), c.Param("rateId"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Evaluate persists the analysis, applies its rate and re-prices the item
// @Summary      Evaluate and apply rate analysis
// @Tags         rate-analysis
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                               true   "Item ID"
// @Param        rateId   path  string                               true   "Rate ID"
// @Param        payload  body  service.EvaluateRateAnalysisRequest  false  "Fallback base rate"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id}/rates/{rateId}/analysis/evaluate [post]
func (h *RateAnalysisHandler) Evaluate(c *gin.Context) {
	var req service.EvaluateRateAnalysisRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	res, err := h.analysisService.EvaluateRateAnalysis(c.Request.Context(), c.Param("id"), c.Param("rateId"), req.DefaultRate, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// UpdateEntry edits an entry in place
// @Summary      Update rate analysis entry
// @Tags         rate-analysis
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                            true  "Entry ID"
// @Param        payload  body  service.RateAnalysisEntryRequest  true  "Entry payload"
// @Success      200  {object}  response.Response
// @Router       /api/analysis-entries/{id} [put]
func (h *RateAnalysisHandler) UpdateEntry(c *gin.Context) {
	var req service.RateAnalysisEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.analysisService.UpdateEntry(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// DeleteEntry removes an entry and closes the gap in positions
// @Summary      Delete rate analysis entry
// @Tags         rate-analysis
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Entry ID"
// @Success      200  {object}  response.Response
// @Router       /api/analysis-entries/{id} [delete]
func (h *RateAnalysisHandler) DeleteEntry(c *gin.Context) {
	res, err := h.analysisService.DeleteEntry(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
