package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
)

// Stats: GET /v1/admin/stats
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Moderation.Stats(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Submissions: GET /v1/admin/submissions?search=&color=&from=&to=
func (h *AdminHandler) Submissions(c echo.Context) error {
	f, err := selectionFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rep, err := h.Moderation.Report(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// SetColor: PATCH /v1/admin/submissions/:id/color
func (h *AdminHandler) SetColor(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req colorReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	color, ok := model.ParseColorTag(req.Color)
	if !ok {
		return badRequest(c, "unknown color")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Moderation.SetColor(ctx, id, color); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "color_tag": color})
}

// ColorSelected: POST /v1/admin/submissions/color {ids, color}
func (h *AdminHandler) ColorSelected(c echo.Context) error {
	var req colorReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	color, ok := model.ParseColorTag(req.Color)
	if !ok {
		return badRequest(c, "unknown color")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	job, err := h.Moderation.ColorSelected(ctx, req.IDs, color)
	return jobAccepted(c, job, err)
}

// ColorNicknames: POST /v1/admin/submissions/color-nicknames {nicknames, color}
func (h *AdminHandler) ColorNicknames(c echo.Context) error {
	var req nicknamesReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	color, ok := model.ParseColorTag(req.Color)
	if !ok {
		return badRequest(c, "unknown color")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	job, err := h.Moderation.ColorNicknames(ctx, req.Nicknames, color)
	return jobAccepted(c, job, err)
}

// TurnAllRed: POST /v1/admin/submissions/turn-red, filtered like the report.
func (h *AdminHandler) TurnAllRed(c echo.Context) error {
	f, err := selectionFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	job, err := h.Moderation.TurnAllRed(ctx, f)
	return jobAccepted(c, job, err)
}

// DeleteSubmission: DELETE /v1/admin/submissions/:id (soft delete)
func (h *AdminHandler) DeleteSubmission(c echo.Context) error {
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
	if err := h.Moderation.Delete(ctx, a, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteSelected: POST /v1/admin/submissions/delete {ids}
func (h *AdminHandler) DeleteSelected(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req idsReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	job, err := h.Moderation.DeleteSelected(ctx, a, req.IDs)
	return jobAccepted(c, job, err)
}

// DeleteNicknames: POST /v1/admin/submissions/delete-nicknames {nicknames}
func (h *AdminHandler) DeleteNicknames(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req nicknamesReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	job, err := h.Moderation.DeleteNicknames(ctx, a, req.Nicknames)
	return jobAccepted(c, job, err)
}

// SetPaid: PATCH /v1/admin/submissions/:id/paid {has_paid}
func (h *AdminHandler) SetPaid(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req struct {
		HasPaid *bool `json:"has_paid"`
	}
	if err := c.Bind(&req); err != nil || req.HasPaid == nil {
		return badRequest(c, "has_paid required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Moderation.SetPaid(ctx, id, *req.HasPaid); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "has_paid": *req.HasPaid})
}

// ActivityLog: GET /v1/admin/activity?action=&search=&limit=
func (h *AdminHandler) ActivityLog(c echo.Context) error {
	f := repository.ActivityFilter{
		Action: c.QueryParam("action"),
		Search: c.QueryParam("search"),
	}
	if f.Action == "all" {
		f.Action = ""
	}
	if err := echo.QueryParamsBinder(c).Int("limit", &f.Limit).BindError(); err != nil || f.Limit < 0 {
		return badRequest(c, "invalid limit")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Activity.List(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activity": rows})
}
