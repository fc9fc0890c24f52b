// Package response shapes handler results into JSON responses and maps the
// apperr taxonomy onto HTTP status codes.
package response

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
)

// decimal is satisfied by exact-decimal number types such as
// attributevalue.Number and json.Number.
type decimal interface {
	Int64() (int64, error)
	Float64() (float64, error)
	String() string
}

// JSON writes payload with status after converting exact-decimal numbers.
func JSON(c echo.Context, status int, payload any) error {
	return c.JSON(status, Plain(payload))
}

// Plain returns v with every exact-decimal number replaced by an int64 when
// the value is integral, otherwise a float64. Maps and slices are walked
// recursively; other values are returned untouched.
func Plain(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case decimal:
		return plainNumber(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Plain(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Plain(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Plain(val)
		}
		return out
	default:
		return v
	}
}

func plainNumber(d decimal) any {
	if i, err := d.Int64(); err == nil {
		return i
	}
	f, err := d.Float64()
	if err != nil {
		return d.String()
	}
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f)
	}
	return f
}

// ErrorHandler renders errors as {"message", "code"} bodies. Storage failures
// are logged with their cause and reach the caller as a generic message.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := map[string]string{"message": "internal server error", "code": "INTERNAL_ERROR"}

		var httpErr *echo.HTTPError
		if appErr, ok := apperr.As(err); ok {
			status = appErr.HTTPStatus
			body = map[string]string{"message": appErr.Message, "code": appErr.Code}
			if errors.Is(err, apperr.ErrStorageUnavailable) {
				logger.Error().Err(err).
					Str("request_id", requestID(c)).
					Str("path", c.Request().URL.Path).
					Msg("record store failure")
			}
		} else if errors.As(err, &httpErr) {
			status = httpErr.Code
			body = map[string]string{"message": fmt.Sprint(httpErr.Message), "code": http.StatusText(status)}
		} else {
			logger.Error().Err(err).
				Str("request_id", requestID(c)).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		if writeErr := c.JSON(status, body); writeErr != nil {
			logger.Error().Err(writeErr).Msg("failed to write error response")
		}
	}
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
