package http

import (
	"net/http"
	"strconv"

	"receivables-engine/internal/adapter/middleware"
	"receivables-engine/internal/domain/access"

	"github.com/labstack/echo/v4"
)

// decode binds and validates the request body. When ok is false the error
// response has already been written.
func decode(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}

// pathID reads a numeric receivable id path param.
func pathID(c echo.Context) (uint64, bool, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id path param"})
	}
	return id, true, nil
}

// pathAccount reads a hex32 account path param.
func pathAccount(c echo.Context, name string) (string, bool, error) {
	v := c.Param(name)
	if !reHex32.MatchString(v) {
		return "", false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + name + " path param"})
	}
	return v, true, nil
}

func caller(c echo.Context) access.Caller { return middleware.CallerFrom(c) }
