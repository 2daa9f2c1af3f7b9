package handler

import (
	"net/http"

	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// usecaseのエラー種別をHTTPステータスへ変換する
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := usecase.AsError(err); ok {
		return c.JSON(statusOf(e.Kind), ErrorResponse{Error: e.Message})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func statusOf(kind usecase.ErrorKind) int {
	switch kind {
	case usecase.KindValidation:
		return http.StatusBadRequest
	case usecase.KindUnauthorized:
		return http.StatusUnauthorized
	case usecase.KindForbidden:
		return http.StatusForbidden
	case usecase.KindNotFound:
		return http.StatusNotFound
	case usecase.KindConflict:
		return http.StatusConflict
	case usecase.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func getBuyerIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get("buyer_id")
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}
