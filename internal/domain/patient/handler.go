package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
	"github.com/hospital/hospital-backend/internal/platform/auth"
	"github.com/hospital/hospital-backend/internal/platform/response"
)

// HandlerConfig names the claims used to key the caller's own record and the
// attribute the record key is stored under.
type HandlerConfig struct {
	KeyAttribute    string
	RecordKeyClaim  string
	ProfileKeyClaim string
}

type Handler struct {
	svc *Service
	cfg HandlerConfig
}

func NewHandler(svc *Service, cfg HandlerConfig) *Handler {
	if cfg.KeyAttribute == "" {
		cfg.KeyAttribute = DefaultKeyAttribute
	}
	if cfg.RecordKeyClaim == "" {
		cfg.RecordKeyClaim = auth.ClaimSubject
	}
	if cfg.ProfileKeyClaim == "" {
		cfg.ProfileKeyClaim = auth.ClaimEmail
	}
	return &Handler{svc: svc, cfg: cfg}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	requireIdentity := auth.RequireIdentity()
	e.GET("/patient/me", h.GetProfile, requireIdentity)
	e.GET("/me/record", h.GetMyRecord, requireIdentity)
	e.PUT("/me/record", h.PutMyRecord, requireIdentity)
}

// GetProfile returns the caller's identity and their record, or a null
// patient when none is stored.
func (h *Handler) GetProfile(c echo.Context) error {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	key := id.Claim(h.cfg.ProfileKeyClaim)
	if key == "" {
		return apperr.Unauthenticated("unauthorized")
	}

	rec, err := h.svc.FindRecord(c.Request().Context(), key)
	if err != nil {
		return err
	}

	sub := id.Subject
	if sub == "" {
		sub = id.Username
	}
	body := map[string]any{
		"user": map[string]any{
			"email": nullable(id.Email),
			"sub":   nullable(sub),
		},
		"patient": nil,
	}
	if rec != nil {
		body["patient"] = rec.Document(h.cfg.KeyAttribute)
	}
	return response.JSON(c, http.StatusOK, body)
}

func (h *Handler) GetMyRecord(c echo.Context) error {
	key, err := h.recordKey(c)
	if err != nil {
		return err
	}

	rec, err := h.svc.GetRecord(c.Request().Context(), key)
	if err != nil {
		return err
	}
	return response.JSON(c, http.StatusOK, rec.Document(h.cfg.KeyAttribute))
}

func (h *Handler) PutMyRecord(c echo.Context) error {
	key, err := h.recordKey(c)
	if err != nil {
		return err
	}

	// Clients behind API Gateway often omit the content type.
	if c.Request().Header.Get(echo.HeaderContentType) == "" {
		c.Request().Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	var upd DiagnosisUpdate
	if err := c.Bind(&upd); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return he
		}
		return apperr.Validation("invalid JSON body")
	}
	if err := h.svc.SetDiagnosis(c.Request().Context(), key, upd); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) recordKey(c echo.Context) (string, error) {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	key := id.Claim(h.cfg.RecordKeyClaim)
	if key == "" {
		return "", apperr.Unauthenticated("unauthorized")
	}
	return key, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
