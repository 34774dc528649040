package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/service"
)

// SelectionHandler serves a user's own selections and the form status.
type SelectionHandler struct {
	Selections *service.Selections
	Gates      *service.Gates
}

func NewSelectionHandler(s *service.Selections, g *service.Gates) *SelectionHandler {
	return &SelectionHandler{Selections: s, Gates: g}
}

type pickReq struct {
	Nickname       string `json:"nickname"`
	Numbers        []int  `json:"numbers"`
	IdempotencyKey string `json:"idempotency_key"`
}

// FormStatus: GET /v1/form
func (h *SelectionHandler) FormStatus(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Gates.FormStatus(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// History: GET /v1/selections
func (h *SelectionHandler) History(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Selections.History(ctx, a)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"selections": rows})
}

// Submit: POST /v1/selections.  The idempotency key may come in the body or
// the Idempotency-Key header; a replay answers 200 with the original row.
func (h *SelectionHandler) Submit(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req pickReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sel, created, err := h.Selections.Submit(ctx, a, service.SubmitInput{
		Nickname:       req.Nickname,
		Numbers:        req.Numbers,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{"selection": sel, "created": created})
}

// Resend: POST /v1/selections/resend
func (h *SelectionHandler) Resend(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req pickReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sel, err := h.Selections.Resend(ctx, a, req.Nickname, req.Numbers)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"selection": sel})
}

// Update: PUT /v1/selections/:id
func (h *SelectionHandler) Update(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req pickReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sel, err := h.Selections.Edit(ctx, a, id, req.Nickname, req.Numbers)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"selection": sel})
}

// Delete: DELETE /v1/selections/:id
func (h *SelectionHandler) Delete(c echo.Context) error {
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
	if err := h.Selections.Delete(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Hide: PATCH /v1/selections/:id/hide
func (h *SelectionHandler) Hide(c echo.Context) error {
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
	if err := h.Selections.HideFromHistory(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
