package handler

import (
	"github.com/labstack/echo/v4"

	"experts-service/internal/apperr"
)

// respondError maps an application error to its HTTP status exactly
// once. Rate-limit rejections carry the retry delay; everything else
// is just the message.
func respondError(c echo.Context, err error) error {
	e := apperr.From(err)
	body := echo.Map{"error": e.Message}
	if e.Kind == apperr.KindRateLimited {
		body["retry_after"] = e.RetryAfterSeconds
	}
	return c.JSON(e.HTTPStatus(), body)
}
