// Package httpx translates typed outcomes into the JSON error envelope.
// Denials always surface as an explicit status plus stable code, never as a
// 200 with empty data.
package httpx

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"zenamanage/internal/apierr"
)

// Error writes the envelope for a failed request:
//
//	{"ok": false, "code": "TENANT_PERMISSION_DENIED", "error": "..."}
//
// Unrecognized errors map to a 500 with the generic internal code; their
// details stay in the logs.
func Error(c echo.Context, err error) error {
	if e := apierr.From(err); e != nil {
		return c.JSON(e.Status, echo.Map{
			"ok":    false,
			"code":  e.Code,
			"error": e.Message,
		})
	}

	return c.JSON(http.StatusInternalServerError, echo.Map{
		"ok":    false,
		"code":  apierr.CodeInternal,
		"error": "internal error",
	})
}

// Fail writes the envelope for a request-level failure with an explicit
// status and code.
func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"ok":    false,
		"code":  code,
		"error": message,
	})
}
