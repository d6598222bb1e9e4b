package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/court-reservation-engine/internal/auth"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/request"
	"github.com/nekogravitycat/court-reservation-engine/internal/pkg/response"
	"github.com/nekogravitycat/court-reservation-engine/internal/reservation"
)

type Handler struct {
	service reservation.Service
}

func NewHandler(service reservation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	req := body.toBookRequest(auth.GetUserID(c))
	req.Origin = c.GetHeader("X-Booking-Origin")

	res, err := h.service.Book(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookResponse(res))
}

// Validate runs the full check and quote without writing anything.
func (h *Handler) Validate(c *gin.Context) {
	var body CreateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	res, err := h.service.Validate(c.Request.Context(), body.toBookRequest(auth.GetUserID(c)))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, newValidateResponse(res))
}

func (h *Handler) List(c *gin.Context) {
	var query ListReservationsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	filter := reservation.Filter{
		UserID:            auth.GetUserID(c),
		CourtID:           query.CourtID,
		RecurrenceGroupID: query.RecurrenceGroupID,
		Status:            query.Status,
		StartTime:         query.StartTimeFrom,
		EndTime:           query.StartTimeTo,
		Page:              query.Page,
		PageSize:          query.PageSize,
		SortBy:            query.SortBy,
		SortOrder:         query.SortOrder,
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]ReservationResponse, len(items))
	for i, r := range items {
		out[i] = NewReservationResponse(r)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(out, query.Page, query.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}

	r, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if r.UserID != auth.GetUserID(c) {
		response.Error(c, reservation.ErrPermissionDenied)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}

	var body CancelReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BindError(c, err)
			return
		}
	}

	r, err := h.service.Cancel(c.Request.Context(), uri.ID, auth.GetUserID(c), body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Reschedule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}

	var body RescheduleReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	r, err := h.service.Reschedule(c.Request.Context(), uri.ID, auth.GetUserID(c), body.StartTime)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) GroupTotal(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}

	total, err := h.service.GroupTotal(c.Request.Context(), uri.ID, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, GroupTotalResponse{
		RecurrenceGroupID: total.RecurrenceGroupID,
		Count:             total.Count,
		Total:             total.Total,
	})
}

func (h *Handler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}

	var query AvailabilityRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BindError(c, err)
		return
	}

	slots, err := h.service.Availability(c.Request.Context(), uri.ID, query.Date, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, AvailabilityResponse{CourtID: uri.ID, Date: query.Date, Slots: slots})
}
