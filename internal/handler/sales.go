package handler

import (
	"net/http"
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"
	"github.com/leonardodevbr/siscondi-sub000/internal/middleware"
	"github.com/leonardodevbr/siscondi-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct {
	svc      service.SaleService
	gateways *gateway.Factory
	pixTTL   time.Duration
}

func NewSalesHandler(svc service.SaleService, gateways *gateway.Factory, pixTTL time.Duration) *SalesHandler {
	return &SalesHandler{svc: svc, gateways: gateways, pixTTL: pixTTL}
}

// Start godoc
// @Summary      Start a sale
// @Description  Opens a sale on the operator's shift. One concurrent open sale per operator-shift.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.StartSaleRequest true "Sale context"
// @Success      201  {object} dto.SaleResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/sales [post]
func (h *SalesHandler) Start(c *gin.Context) {
	var req dto.StartSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operatorID, err := middleware.OperatorID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.svc.Start(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Get godoc
// @Summary      Fetch a sale
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Sale UUID"
// @Success      200 {object} dto.SaleResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sales/{id} [get]
func (h *SalesHandler) Get(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), saleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddLine godoc
// @Summary      Add a line to an open sale
// @Description  Captures the variant's current price; lines for the same variant merge.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Sale UUID"
// @Param        body body dto.AddLineRequest true "Variant and quantity"
// @Success      200  {object} dto.SaleResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/sales/{id}/lines [post]
func (h *SalesHandler) AddLine(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AddLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddLine(c.Request.Context(), saleID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveLine godoc
// @Summary      Remove a line from an open sale
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string true "Sale UUID"
// @Param        lineId  path string true "Line UUID"
// @Success      200 {object} dto.SaleResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/sales/{id}/lines/{lineId} [delete]
func (h *SalesHandler) RemoveLine(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	lineID, ok := parseID(c, "lineId")
	if !ok {
		return
	}
	resp, err := h.svc.RemoveLine(c.Request.Context(), saleID, lineID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Discount godoc
// @Summary      Apply a discount to an open sale
// @Description  PERCENTAGE is computed over the current total; FIXED is capped at the total.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Sale UUID"
// @Param        body body dto.DiscountRequest true "Discount"
// @Success      200  {object} dto.SaleResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/sales/{id}/discount [post]
func (h *SalesHandler) Discount(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.DiscountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ApplyDiscount(c.Request.Context(), saleID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddPayment godoc
// @Summary      Record a payment on an open sale
// @Description  CASH and card payments confirm immediately; PIX stays pending until the gateway webhook.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Sale UUID"
// @Param        body body dto.AddPaymentRequest true "Payment"
// @Success      200  {object} dto.SaleResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/sales/{id}/payments [post]
func (h *SalesHandler) AddPayment(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.AddPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddPayment(c.Request.Context(), saleID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Finish godoc
// @Summary      Finish a sale
// @Description  Fully confirmed payments commit atomically: stock decremented, ledger entry appended, coupon counted. An outstanding PIX moves the sale to PENDING_PAYMENT.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Sale UUID"
// @Success      200 {object} dto.SaleResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/sales/{id}/finish [post]
func (h *SalesHandler) Finish(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Finish(c.Request.Context(), saleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary      Cancel an open sale
// @Description  Only OPEN sales cancel; nothing was committed, so nothing is reverted.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Sale UUID"
// @Success      200 {object} dto.SaleResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/sales/{id}/cancel [post]
func (h *SalesHandler) Cancel(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), saleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GeneratePix godoc
// @Summary      Generate a PIX charge
// @Description  Creates a provider PIX charge for the sale's outstanding PIX payment.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id      path  string true  "Sale UUID"
// @Param        gateway query string false "Provider override"
// @Success      201 {object} dto.PixChargeResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/sales/{id}/pix [post]
func (h *SalesHandler) GeneratePix(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	gw, err := h.gateways.Select(c.Query("gateway"))
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.svc.GeneratePix(c.Request.Context(), saleID, gw, h.pixTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Installments godoc
// @Summary      Installment options for a sale
// @Description  Computes the provider's installment plan over the sale's final amount.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        id      path  string true  "Sale UUID"
// @Param        gateway query string false "Provider override"
// @Success      200 {array} dto.InstallmentOption
// @Failure      404 {object} apierror.APIError
// @Router       /v1/sales/{id}/installments [get]
func (h *SalesHandler) Installments(c *gin.Context) {
	saleID, ok := parseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.svc.Get(c.Request.Context(), saleID)
	if err != nil {
		respondError(c, err)
		return
	}
	gw, err := h.gateways.Select(c.Query("gateway"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gw.CalculateInstallments(sale.FinalAmount))
}
