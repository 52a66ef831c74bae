package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/Domenick1991/travelbook/internal/service/reservation"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service reservation.Coordinator
}

type createBookingRequest struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
	UserID       int64  `json:"user_id"`
	Units        int    `json:"units"`
	Email        string `json:"email"`
}

type transferRequest struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   int64  `json:"resource_id"`
}

type bookingResponse struct {
	Token           string `json:"token"`
	Status          string `json:"status"`
	ResourceKind    string `json:"resource_kind"`
	ResourceID      int64  `json:"resource_id"`
	UserID          int64  `json:"user_id"`
	Units           int    `json:"units"`
	TotalPriceCents int64  `json:"total_price_cents"`
	PaymentStatus   string `json:"payment_status,omitempty"`
	PaymentDeadline string `json:"payment_deadline,omitempty"`
	PaymentDueNow   bool   `json:"payment_due_now"`
	Email           string `json:"email"`
}

func NewBookingHandler(service reservation.Coordinator) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("/", h.create)
	router.GET("/:token", h.get)
	router.PUT("/:token/confirm", h.confirm)
	router.PUT("/:token/complete", h.complete)
	router.PUT("/:token/cancel", h.cancel)
	router.PUT("/:token/transfer", h.transfer)
	router.DELETE("/:token", h.remove)
}

// actorFrom trusts the identity headers set by the auth middleware in
// front of this service.
func actorFrom(c *gin.Context) reservation.Actor {
	userID, _ := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
	return reservation.Actor{
		UserID: userID,
		Admin:  c.GetHeader("X-Admin") == "true",
	}
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.service.Reserve(c.Request.Context(), actorFrom(c), reservation.ReserveInput{
		Resource: domain.ResourceRef{Kind: domain.ResourceKind(req.ResourceKind), ID: req.ResourceID},
		UserID:   req.UserID,
		Units:    req.Units,
		Email:    req.Email,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(booking))
}

func (h *BookingHandler) get(c *gin.Context) {
	booking, err := h.service.GetBooking(c.Request.Context(), actorFrom(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) confirm(c *gin.Context) {
	booking, err := h.service.Confirm(c.Request.Context(), actorFrom(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) complete(c *gin.Context) {
	booking, err := h.service.Complete(c.Request.Context(), actorFrom(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) cancel(c *gin.Context) {
	booking, err := h.service.Release(c.Request.Context(), actorFrom(c), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.service.Transfer(c.Request.Context(), actorFrom(c), c.Param("token"),
		domain.ResourceRef{Kind: domain.ResourceKind(req.ResourceKind), ID: req.ResourceID})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) remove(c *gin.Context) {
	if err := h.service.DeleteBooking(c.Request.Context(), actorFrom(c), c.Param("token")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	resp := bookingResponse{
		Token:           b.Token,
		Status:          string(b.Status),
		ResourceKind:    string(b.Resource.Kind),
		ResourceID:      b.Resource.ID,
		UserID:          b.UserID,
		Units:           b.Units,
		TotalPriceCents: b.TotalPriceCents,
		PaymentStatus:   string(b.PaymentStatus),
		PaymentDueNow:   b.PaymentDueNow,
		Email:           b.Email,
	}
	if b.PaymentDeadline != nil {
		resp.PaymentDeadline = b.PaymentDeadline.Format(time.RFC3339)
	}
	return resp
}
