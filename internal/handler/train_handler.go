package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train-schedule-api/internal/models"
	"github.com/noah-isme/train-schedule-api/internal/service"
	appErrors "github.com/noah-isme/train-schedule-api/pkg/errors"
	"github.com/noah-isme/train-schedule-api/pkg/response"
)

// TrainHandler exposes train schedule endpoints.
type TrainHandler struct {
	trains *service.TrainService
}

// NewTrainHandler constructs TrainHandler.
func NewTrainHandler(trains *service.TrainService) *TrainHandler {
	return &TrainHandler{trains: trains}
}

// trainFilterFromQuery parses listing parameters. Explicitly supplied page
// and limit values below 1 are rejected rather than silently defaulted.
func trainFilterFromQuery(c *gin.Context) (models.TrainFilter, error) {
	var filter models.TrainFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.TrainNumber = c.Query("train_number")
	filter.DepartureStation = c.Query("departure_station")
	filter.ArrivalStation = c.Query("arrival_station")
	filter.Platform = c.Query("platform")
	filter.Status = models.TrainStatus(c.Query("status"))
	filter.Type = models.TrainType(c.Query("type"))
	filter.DepartureDate = c.Query("departure_time")
	filter.ArrivalDate = c.Query("arrival_time")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, fmt.Errorf("page must be a positive integer")
		}
		filter.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

// List returns one page of trains plus the total matching count.
func (h *TrainHandler) List(c *gin.Context) {
	filter, err := trainFilterFromQuery(c)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}

	page, err := h.trains.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get returns one train by id.
func (h *TrainHandler) Get(c *gin.Context) {
	train, err := h.trains.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, train, nil)
}

// Create adds a new train record.
func (h *TrainHandler) Create(c *gin.Context) {
	var req service.CreateTrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	train, err := h.trains.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, train)
}

// Update applies a partial update to a train record.
func (h *TrainHandler) Update(c *gin.Context) {
	var req service.UpdateTrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	train, err := h.trains.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, train, nil)
}

// Delete removes a train record.
func (h *TrainHandler) Delete(c *gin.Context) {
	if err := h.trains.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
