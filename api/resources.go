package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/Domenick1991/travelbook/internal/service/resources"
	"github.com/gin-gonic/gin"
)

type ResourceHandler struct {
	resources  resources.ResourceUseCase
	status     resources.StatusUseCase
	reconciler resources.ReconcileUseCase
}

type advanceStatusRequest struct {
	Status      string     `json:"status"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
}

type resourceResponse struct {
	ID                int64  `json:"id"`
	Kind              string `json:"kind"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	CapacityTotal     int    `json:"capacity_total"`
	CapacityAvailable int    `json:"capacity_available"`
	PriceCents        int64  `json:"price_cents"`
	WindowStart       string `json:"window_start"`
	WindowEnd         string `json:"window_end"`
}

func NewResourceHandler(res resources.ResourceUseCase, status resources.StatusUseCase, reconciler resources.ReconcileUseCase) *ResourceHandler {
	return &ResourceHandler{resources: res, status: status, reconciler: reconciler}
}

func (h *ResourceHandler) Register(router *gin.RouterGroup) {
	router.GET("/:kind", h.list)
	router.GET("/:kind/:id", h.get)
	router.PUT("/:kind/:id/status", h.advanceStatus)
	router.DELETE("/:kind", h.bulkDelete)
}

func parseKind(c *gin.Context) (domain.ResourceKind, bool) {
	kind := domain.ResourceKind(strings.ToUpper(strings.TrimSuffix(c.Param("kind"), "s")))
	if !kind.Valid() {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown resource kind"})
		return "", false
	}
	return kind, true
}

func parseRef(c *gin.Context) (domain.ResourceRef, bool) {
	kind, ok := parseKind(c)
	if !ok {
		return domain.ResourceRef{}, false
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resource id"})
		return domain.ResourceRef{}, false
	}
	return domain.ResourceRef{Kind: kind, ID: id}, true
}

func (h *ResourceHandler) list(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	items, err := h.resources.List(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]resourceResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toResourceResponse(&items[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ResourceHandler) get(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}
	res, err := h.resources.GetByID(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResourceResponse(res))
}

func (h *ResourceHandler) advanceStatus(c *gin.Context) {
	ref, ok := parseRef(c)
	if !ok {
		return
	}
	var req advanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var revised *domain.Window
	if req.WindowStart != nil || req.WindowEnd != nil {
		if req.WindowStart == nil || req.WindowEnd == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "revised window requires both start and end"})
			return
		}
		revised = &domain.Window{Start: *req.WindowStart, End: *req.WindowEnd}
	}

	res, err := h.status.Advance(c.Request.Context(), ref, domain.ResourceStatus(strings.ToUpper(req.Status)), revised)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResourceResponse(res))
}

func (h *ResourceHandler) bulkDelete(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	report, err := h.reconciler.DeleteAll(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func toResourceResponse(r *domain.Resource) resourceResponse {
	return resourceResponse{
		ID:                r.ID,
		Kind:              string(r.Kind),
		Name:              r.Name,
		Status:            string(r.Status),
		CapacityTotal:     r.CapacityTotal,
		CapacityAvailable: r.CapacityAvailable,
		PriceCents:        r.PriceCents,
		WindowStart:       r.WindowStart.Format(time.RFC3339),
		WindowEnd:         r.WindowEnd.Format(time.RFC3339),
	}
}
