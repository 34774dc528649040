package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// ListUsers: GET /v1/admin/users
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Accounts.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": rows})
}

// SetRole: PATCH /v1/admin/users/:id/role {role}
func (h *AdminHandler) SetRole(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role != model.RoleUser && role != model.RoleAdmin {
		return badRequest(c, "role must be user or admin")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Accounts.SetRole(ctx, a, id, role); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": role})
}

// SetGroup: PATCH /v1/admin/users/:id/group {group}
func (h *AdminHandler) SetGroup(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req struct {
		Group string `json:"group"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Accounts.SetGroup(ctx, a, id, strings.TrimSpace(req.Group)); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "group": strings.TrimSpace(req.Group)})
}

// SetDisplayName: PATCH /v1/admin/users/:id/display-name {display_name}
func (h *AdminHandler) SetDisplayName(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Accounts.SetDisplayName(ctx, a, id, req.DisplayName); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "display_name": strings.TrimSpace(req.DisplayName)})
}

// ResetPassword: POST /v1/admin/users/:id/reset-password.  The new password
// is returned once and never stored in clear.
func (h *AdminHandler) ResetPassword(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	pw, err := h.Accounts.ResetPassword(ctx, a, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "password": pw})
}

// DeleteUser: DELETE /v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Accounts.Delete(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- payments -----

type ledgerReq struct {
	UserName   string `json:"user_name"`
	TotalForms int    `json:"total_forms"`
	PaidForms  int    `json:"paid_forms"`
	Notes      string `json:"notes"`
}

// ListPayments: GET /v1/admin/payments
func (h *AdminHandler) ListPayments(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Ledger.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payments": rows})
}

// GetPayment: GET /v1/admin/payments/:email
func (h *AdminHandler) GetPayment(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	e, err := h.Ledger.Get(ctx, c.Param("email"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": e})
}

// SetPayment: PUT /v1/admin/payments/:email
func (h *AdminHandler) SetPayment(c echo.Context) error {
	var req ledgerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	e, err := h.Ledger.Set(ctx, c.Param("email"), strings.TrimSpace(req.UserName), req.TotalForms, req.PaidForms, req.Notes)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": e})
}

// SetUnpaid: PUT /v1/admin/payments/:email/unpaid {unpaid}
func (h *AdminHandler) SetUnpaid(c echo.Context) error {
	var req struct {
		Unpaid *int `json:"unpaid"`
	}
	if err := c.Bind(&req); err != nil || req.Unpaid == nil {
		return badRequest(c, "unpaid required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	e, err := h.Ledger.SetUnpaid(ctx, c.Param("email"), *req.Unpaid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": e})
}
