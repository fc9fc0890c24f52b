package metrics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hospital/hospital-backend/internal/platform/auth"
	"github.com/hospital/hospital-backend/internal/platform/response"
)

// Handler serves the admin aggregate views.
type Handler struct {
	svc         *Service
	adminGroups []string
}

func NewHandler(svc *Service, adminGroups []string) *Handler {
	return &Handler{svc: svc, adminGroups: adminGroups}
}

// RegisterRoutes mounts the admin aggregate endpoints. Role checks run before
// query validation, so a non-admin never learns whether its bounds were valid.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	requireAdmin := auth.RequireAdmin(h.adminGroups)
	e.GET("/admin/metrics", h.GetStatusSummary, requireAdmin)
	e.GET("/admin/metrics/overview", h.GetOverview, requireAdmin)
	e.GET("/admin/metrics/diseases", h.GetDiseases, requireAdmin)
	e.GET("/admin/metrics/medications", h.GetMedications, requireAdmin)
}

func (h *Handler) GetOverview(c echo.Context) error {
	bounds, err := ParseBounds(c.QueryParams())
	if err != nil {
		return err
	}
	overview, err := h.svc.Overview(c.Request().Context(), bounds)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, overview)
}

func (h *Handler) GetDiseases(c echo.Context) error {
	bounds, err := ParseBounds(c.QueryParams())
	if err != nil {
		return err
	}
	counts, err := h.svc.Diseases(c.Request().Context(), bounds)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, map[string]any{"diseases": counts})
}

func (h *Handler) GetMedications(c echo.Context) error {
	bounds, err := ParseBounds(c.QueryParams())
	if err != nil {
		return err
	}
	counts, err := h.svc.Medications(c.Request().Context(), bounds)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, map[string]any{"medications": counts})
}

func (h *Handler) GetStatusSummary(c echo.Context) error {
	bounds, err := ParseBounds(c.QueryParams())
	if err != nil {
		return err
	}
	summary, err := h.svc.Statuses(c.Request().Context(), bounds)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, summary)
}
