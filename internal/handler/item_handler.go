package handler

import (
	"net/http"

	"estimator/internal/middleware"
	"estimator/internal/service"
	"estimator/pkg/response"

	"github.com/gin-gonic/gin"
)

type ItemHandler struct {
	estimateService    service.EstimateService
	measurementService service.MeasurementService
}

func NewItemHandler(estimateService service.EstimateService, measurementService service.MeasurementService) *ItemHandler {
	return &ItemHandler{estimateService: estimateService, measurementService: measurementService}
}

func (h *ItemHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/sub-works/:id/items", h.CreateItem)

	items := router.Group("/items")
	{
		items.GET("/:id", h.GetItem)
		items.PUT("/:id", h.UpdateItem)
		items.DELETE("/:id", h.DeleteItem)
		items.PUT("/:id/operation", h.SetOperation)
		items.POST("/:id/recompute", h.Recompute)
		items.POST("/:id/rates", h.CreateRate)
		items.GET("/:id/measurements", h.ListMeasurements)
		items.POST("/:id/measurements", h.CreateMeasurement)
	}
	rates := router.Group("/rates")
	{
		rates.PUT("/:id", h.UpdateRate)
		rates.DELETE("/:id", h.DeleteRate)
	}
	measurements := router.Group("/measurements")
	{
		measurements.PUT("/:id", h.UpdateMeasurement)
		measurements.DELETE("/:id", h.DeleteMeasurement)
	}
}

// CreateItem adds a line item to a sub-work
// @Summary      Create item
// @Tags         items
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                     true  "Sub-work ID"
// @Param        payload  body  service.CreateItemRequest  true  "Item payload"
// @Success      201  {object}  response.Response
// @Router       /api/sub-works/{id}/items [post]
func (h *ItemHandler) CreateItem(c *gin.Context) {
	var req service.CreateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.estimateService.CreateItem(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// GetItem returns an item with its rates and measurements
// @Summary      Get item
// @Tags         items
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id} [get]
func (h *ItemHandler) GetItem(c *gin.Context) {
	item, err := h.estimateService.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// UpdateItem edits the descriptive fields of an item
// @Summary      Update item
// @Tags         items
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                     true  "Item ID"
// @Param        payload  body  service.UpdateItemRequest  true  "Item payload"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id} [put]
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	var req service.UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.estimateService.UpdateItem(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// DeleteItem removes an item with its rates and measurements
// @Summary      Delete item
// @Tags         items
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id} [delete]
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	if err := h.estimateService.DeleteItem(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Item deleted successfully"}))
}

// SetOperation changes the item operation and unit conversion, then re-derives the item
// @Summary      Set item operation
// @Tags         items
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                        true  "Item ID"
// @Param        payload  body  service.ItemOperationRequest  true  "Operation payload"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id}/operation [put]
func (h *ItemHandler) SetOperation(c *gin.Context) {
	var req service.ItemOperationRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.estimateService.SetItemOperation(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// Recompute re-derives every quantity and amount of an item
// @Summary      Recompute item
// @Tags         items
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id}/recompute [post]
func (h *ItemHandler) Recompute(c *gin.Context) {
	item, err := h.estimateService.RecomputeItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// CreateRate adds a rate to an item
// @Summary      Create rate
// @Tags         rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "Item ID"
// @Param        payload  body  service.RateRequest  true  "Rate payload"
// @Success      201  {object}  response.Response
// @Router       /api/items/{id}/rates [post]
func (h *ItemHandler) CreateRate(c *gin.Context) {
	var req service.RateRequest
	if !bindJSON(c, &req) {
		return
	}
	rate, err := h.estimateService.CreateRate(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rate))
}

// UpdateRate edits a rate and re-prices its item
// @Summary      Update rate
// @Tags         rates
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string               true  "Rate ID"
// @Param        payload  body  service.RateRequest  true  "Rate payload"
// @Success      200  {object}  response.Response
// @Router       /api/rates/{id} [put]
func (h *ItemHandler) UpdateRate(c *gin.Context) {
	var req service.RateRequest
	if !bindJSON(c, &req) {
		return
	}
	rate, err := h.estimateService.UpdateRate(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rate))
}

// DeleteRate removes a rate and its analysis
// @Summary      Delete rate
// @Tags         rates
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Rate ID"
// @Success      200  {object}  response.Response
// @Router       /api/rates/{id} [delete]
func (h *ItemHandler) DeleteRate(c *gin.Context) {
	if err := h.estimateService.DeleteRate(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Rate deleted successfully"}))
}

// ListMeasurements returns the measurement rows of an item in sequence order
// @Summary      List measurements
// @Tags         measurements
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Item ID"
// @Success      200  {object}  response.Response
// @Router       /api/items/{id}/measurements [get]
func (h *ItemHandler) ListMeasurements(c *gin.Context) {
	rows, err := h.measurementService.ListMeasurements(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rows))
}

// CreateMeasurement adds a measurement row and re-derives the item
// @Summary      Create measurement
// @Tags         measurements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                      true  "Item ID"
// @Param        payload  body  service.MeasurementRequest  true  "Measurement payload"
// @Success      201  {object}  response.Response
// @Router       /api/items/{id}/measurements [post]
func (h *ItemHandler) CreateMeasurement(c *gin.Context) {
	var req service.MeasurementRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.measurementService.CreateMeasurement(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// UpdateMeasurement edits a measurement row and re-derives the item
// @Summary      Update measurement
// @Tags         measurements
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                      true  "Measurement ID"
// @Param        payload  body  service.MeasurementRequest  true  "Measurement payload"
// @Success      200  {object}  response.Response
// @Router       /api/measurements/{id} [put]
func (h *ItemHandler) UpdateMeasurement(c *gin.Context) {
	var req service.MeasurementRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.measurementService.UpdateMeasurement(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// DeleteMeasurement removes a measurement row and re-derives the item
// @Summary      Delete measurement
// @Tags         measurements
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Measurement ID"
// @Success      200  {object}  response.Response
// @Router       /api/measurements/{id} [delete]
func (h *ItemHandler) DeleteMeasurement(c *gin.Context) {
	item, err := h.measurementService.DeleteMeasurement(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}
