package handler

import (
	"io"
	"net/http"
	"strconv"

	"marketplace/internal/config"
	"marketplace/internal/middleware"
	"marketplace/internal/usecase"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/payments")
	g.Use(middleware.AuthJWT(cfg))
	g.POST("/:id/verify", h.verify)

	// webhookは認証なし（署名で検証する）
	e.POST("/webhooks/payment", h.webhook)
}

func (h *PaymentHandler) verify(c echo.Context) error {
	buyerID, ok := getBuyerIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.VerifyPayment(c.Request().Context(), buyerID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) webhook(c echo.Context) error {
	// 署名検証のため生のbodyを読む（Bindは使わない）
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	signature := c.Request().Header.Get("X-Webhook-Signature")

	if err := h.uc.HandleWebhook(c.Request().Context(), body, signature); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
