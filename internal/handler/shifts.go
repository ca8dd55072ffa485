package handler

import (
	"net/http"

	"github.com/leonardodevbr/siscondi-sub000/internal/dto"
	"github.com/leonardodevbr/siscondi-sub000/internal/middleware"
	"github.com/leonardodevbr/siscondi-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type ShiftsHandler struct{ svc service.ShiftService }

func NewShiftsHandler(svc service.ShiftService) *ShiftsHandler { return &ShiftsHandler{svc: svc} }

// Open godoc
// @Summary      Open a register shift
// @Description  Opens the operator's shift with a declared initial cash balance. One open shift per operator.
// @Tags         shifts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.OpenShiftRequest true "Initial balance"
// @Success      201  {object} dto.ShiftResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/shifts [post]
func (h *ShiftsHandler) Open(c *gin.Context) {
	var req dto.OpenShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	operatorID, err := middleware.OperatorID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), operatorID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary      Close a register shift
// @Description  Records the operator's declared closing balance and closes the shift.
// @Tags         shifts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Shift UUID"
// @Param        body body dto.CloseShiftRequest true "Declared final balance"
// @Success      200  {object} dto.ShiftResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/shifts/{id}/close [post]
func (h *ShiftsHandler) Close(c *gin.Context) {
	shiftID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseShiftRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), shiftID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movement godoc
// @Summary      Register a cash movement
// @Description  Appends a SUPPLY, BLEED or EXPENSE entry to the shift's cash ledger.
// @Tags         shifts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string true "Shift UUID"
// @Param        body body dto.MovementRequest true "Movement"
// @Success      200  {object} dto.MovementResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/shifts/{id}/movements [post]
func (h *ShiftsHandler) Movement(c *gin.Context) {
	shiftID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Movement(c.Request.Context(), shiftID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Balance godoc
// @Summary      Current shift balance
// @Description  Returns the running cash balance computed from the ledger.
// @Tags         shifts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Shift UUID"
// @Success      200 {object} dto.BalanceResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/shifts/{id}/balance [get]
func (h *ShiftsHandler) Balance(c *gin.Context) {
	shiftID, ok := parseID(c, "id")
	if !ok {
		return
	}
	balance, err := h.svc.CurrentBalance(c.Request.Context(), shiftID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{ShiftID: shiftID.String(), Balance: balance})
}

// Movements godoc
// @Summary      List shift cash movements
// @Tags         shifts
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Shift UUID"
// @Success      200 {array} dto.MovementResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/shifts/{id}/movements [get]
func (h *ShiftsHandler) Movements(c *gin.Context) {
	shiftID, ok := parseID(c, "id")
	if !ok {
		return
	}
	movs, err := h.svc.ListMovements(c.Request.Context(), shiftID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movs)
}
