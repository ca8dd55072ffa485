package handler

import (
	"io"
	"net/http"

	"github.com/leonardodevbr/siscondi-sub000/internal/apierror"
	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"
	"github.com/leonardodevbr/siscondi-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type WebhooksHandler struct {
	reconciler service.ReconcileService
	gateways   *gateway.Factory
}

func NewWebhooksHandler(reconciler service.ReconcileService, gateways *gateway.Factory) *WebhooksHandler {
	return &WebhooksHandler{reconciler: reconciler, gateways: gateways}
}

// Receive godoc
// @Summary      Gateway webhook intake
// @Description  Applies an asynchronous payment notification. Idempotent: replays of a settled charge are acknowledged without side effects.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        gateway path string true "Provider name"
// @Success      200 {object} dto.WebhookAck
// @Failure      404 {object} apierror.APIError
// @Router       /webhooks/{gateway} [post]
func (h *WebhooksHandler) Receive(c *gin.Context) {
	gw, err := h.gateways.Select(c.Param("gateway"))
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("not_found", "unknown gateway"))
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("bad_request", "unreadable body"))
		return
	}

	ack, err := h.reconciler.Apply(c.Request.Context(), gw, raw)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}
