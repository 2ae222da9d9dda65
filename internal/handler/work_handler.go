package handler

import (
	"net/http"

	"estimator/internal/apperror"
	"estimator/internal/middleware"
	"estimator/internal/report"
	"estimator/internal/service"
	"estimator/pkg/pagination"
	"estimator/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WorkHandler struct {
	estimateService service.EstimateService
	reports         *report.Store
}

func NewWorkHandler(estimateService service.EstimateService, reports *report.Store) *WorkHandler {
	return &WorkHandler{estimateService: estimateService, reports: reports}
}

func (h *WorkHandler) RegisterRoutes(router *gin.RouterGroup) {
	works := router.Group("/works")
	{
		works.GET("", h.ListWorks)
		works.POST("", h.CreateWork)
		works.GET("/:id", h.GetWork)
		works.PUT("/:id", h.UpdateWork)
		works.DELETE("/:id", h.DeleteWork)
		works.GET("/:id/abstract", h.GetAbstract)
		works.POST("/:id/sub-works", h.CreateSubWork)
	}
	subWorks := router.Group("/sub-works")
	{
		subWorks.PUT("/:id", h.UpdateSubWork)
		subWorks.DELETE("/:id", h.DeleteSubWork)
	}
}

// ListWorks returns paginated estimates
// @Summary      List works
// @Tags         works
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by work number or name"
// @Success      200     {object}  response.Response
// @Router       /api/works [get]
func (h *WorkHandler) ListWorks(c *gin.Context) {
	p := pagination.Parse(c)
	works, total, err := h.estimateService.ListWorks(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, works, p.Page, p.Limit, total))
}

// CreateWork creates a new estimate
// @Summary      Create work
// @Tags         works
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateWorkRequest  true  "Work payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/works [post]
func (h *WorkHandler) CreateWork(c *gin.Context) {
	var req service.CreateWorkRequest
	if !bindJSON(c, &req) {
		return
	}
	work, err := h.estimateService.CreateWork(c.Request.Context(), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, work))
}

// GetWork returns a work with its sub-works, items and rates
// @Summary      Get work
// @Tags         works
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Work ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/works/{id} [get]
func (h *WorkHandler) GetWork(c *gin.Context) {
	work, err := h.estimateService.GetWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, work))
}

// UpdateWork renames or re-describes a work
// @Summary      Update work
// @Tags         works
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                     true  "Work ID"
// @Param        payload  body  service.UpdateWorkRequest  true  "Update payload"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/works/{id} [put]
func (h *WorkHandler) UpdateWork(c *gin.Context) {
	var req service.UpdateWorkRequest
	if !bindJSON(c, &req) {
		return
	}
	work, err := h.estimateService.UpdateWork(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, work))
}

// DeleteWork deletes a work that is not under review
// @Summary      Delete work
// @Tags         works
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Work ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/works/{id} [delete]
func (h *WorkHandler) DeleteWork(c *gin.Context) {
	if err := h.estimateService.DeleteWork(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Work deleted successfully"}))
}

// GetAbstract returns the work abstract grouped by sub-work and category
// @Summary      Work abstract
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Work ID"
// @Success      200  {object}  response.Response{data=report.WorkAbstract}
// @Failure      404  {object}  response.Response
// @Router       /api/works/{id}/abstract [get]
func (h *WorkHandler) GetAbstract(c *gin.Context) {
	workID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, apperror.Validation("invalid work id %q", c.Param("id")))
		return
	}
	abs, err := h.reports.WorkAbstract(c.Request.Context(), workID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, abs))
}

// CreateSubWork adds a sub-work to a work
// @Summary      Create sub-work
// @Tags         works
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "Work ID"
// @Param        payload  body  service.SubWorkRequest  true  "Sub-work payload"
// @Success      201  {object}  response.Response
// @Router       /api/works/{id}/sub-works [post]
func (h *WorkHandler) CreateSubWork(c *gin.Context) {
	var req service.SubWorkRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.estimateService.CreateSubWork(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, sub))
}

// UpdateSubWork renames a sub-work
// @Summary      Update sub-work
// @Tags         works
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "Sub-work ID"
// @Param        payload  body  service.SubWorkRequest  true  "Sub-work payload"
// @Success      200  {object}  response.Response
// @Router       /api/sub-works/{id} [put]
func (h *WorkHandler) UpdateSubWork(c *gin.Context) {
	var req service.SubWorkRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.estimateService.UpdateSubWork(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sub))
}

// DeleteSubWork deletes a sub-work and its items
// @Summary      Delete sub-work
// @Tags         works
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Sub-work ID"
// @Success      200  {object}  response.Response
// @Router       /api/sub-works/{id} [delete]
func (h *WorkHandler) DeleteSubWork(c *gin.Context) {
	if err := h.estimateService.DeleteSubWork(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Sub-work deleted successfully"}))
}
