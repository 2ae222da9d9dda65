package handler

import (
	"net/http"

	"estimator/internal/service"
	"estimator/pkg/pagination"
	"estimator/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
}

func NewApprovalHandler(approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/works/:id/approval", h.Submit)
	router.GET("/works/:id/approval", h.GetByWork)

	approvals := router.Group("/approvals")
	{
		approvals.GET("", h.List)
		approvals.POST("/:id/actions", h.Act)
		approvals.GET("/:id/history", h.History)
	}
}

// Submit sends an estimate into the approval chain, or resubmits it after a send-back
// @Summary      Submit for approval
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Work ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/works/{id}/approval [post]
func (h *ApprovalHandler) Submit(c *gin.Context) {
	wf, err := h.approvalService.SubmitApproval(c.Request.Context(), c.Param("id"), actorOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, wf))
}

// GetByWork returns the workflow of an estimate
// @Summary      Get workflow by work
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Work ID"
// @Success      200  {object}  response.Response
// @Router       /api/works/{id}/approval [get]
func (h *ApprovalHandler) GetByWork(c *gin.Context) {
	wf, err := h.approvalService.GetByWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, wf))
}

// Act applies forward, send_back, reject or approve at the current level
// @Summary      Act on approval
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                         true  "Workflow ID"
// @Param        payload  body  service.ApprovalActionRequest  true  "Action payload"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/approvals/{id}/actions [post]
func (h *ApprovalHandler) Act(c *gin.Context) {
	var req service.ApprovalActionRequest
	if !bindJSON(c, &req) {
		return
	}
	wf, err := h.approvalService.ActOnApproval(c.Request.Context(), c.Param("id"), req, actorOf(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, wf))
}

// History returns the append-only approval history in sequence order
// @Summary      Get approval history
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Workflow ID"
// @Success      200  {object}  response.Response
// @Router       /api/approvals/{id}/history [get]
func (h *ApprovalHandler) History(c *gin.Context) {
	history, err := h.approvalService.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, history))
}

// List returns workflows filtered by status and current approver
// @Summary      List workflows
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        status    query  string  false  "pending_approval, approved, rejected or sent_back"
// @Param        approver  query  string  false  "Role code or user id holding the estimate"
// @Param        page      query  int     false  "Page number (default: 1)"
// @Param        limit     query  int     false  "Items per page (default: 20)"
// @Success      200  {object}  response.Response
// @Router       /api/approvals [get]
func (h *ApprovalHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	workflows, total, err := h.approvalService.ListWorkflows(c.Request.Context(), service.ApprovalFilter{
		Status:   c.Query("status"),
		Approver: c.Query("approver"),
		Page:     p.Page,
		Limit:    p.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, workflows, p.Page, p.Limit, total))
}
