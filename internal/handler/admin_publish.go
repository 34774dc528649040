package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PublishList: GET /v1/admin/publish, filtered like the report.
func (h *AdminHandler) PublishList(c echo.Context) error {
	f, err := selectionFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	view, err := h.Publication.AdminList(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// PublishSelected: POST /v1/admin/publish/selected {ids}
func (h *AdminHandler) PublishSelected(c echo.Context) error {
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
	job, err := h.Publication.PublishSelected(ctx, a, req.IDs)
	return jobAccepted(c, job, err)
}

// PublishAll: POST /v1/admin/publish/all
func (h *AdminHandler) PublishAll(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	f, err := selectionFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	job, err := h.Publication.PublishAll(ctx, a, f)
	return jobAccepted(c, job, err)
}

// UnpublishSelected: POST /v1/admin/unpublish/selected {ids}
func (h *AdminHandler) UnpublishSelected(c echo.Context) error {
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
	job, err := h.Publication.UnpublishSelected(ctx, a, req.IDs)
	return jobAccepted(c, job, err)
}

// UnpublishAll: POST /v1/admin/unpublish/all
func (h *AdminHandler) UnpublishAll(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	job, err := h.Publication.UnpublishAll(ctx, a)
	return jobAccepted(c, job, err)
}

// ----- winning numbers -----

type winningReq struct {
	Numbers         []int  `json:"numbers"`
	DrawDate        string `json:"draw_date"`
	WeekDescription string `json:"week_description"`
}

// ListWinning: GET /v1/admin/winning-numbers
func (h *AdminHandler) ListWinning(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	rows, err := h.Draws.Recent(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"winning_numbers": rows})
}

// CreateWinning: POST /v1/admin/winning-numbers
func (h *AdminHandler) CreateWinning(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req winningReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	w, err := h.Draws.Create(ctx, a, req.Numbers, req.DrawDate, req.WeekDescription)
	if err != nil {
		return fail(c, err)
	}
	h.resultsChanged(ctx)
	return c.JSON(http.StatusCreated, echo.Map{"winning_numbers": w})
}

// DeleteWinning: DELETE /v1/admin/winning-numbers/:id
func (h *AdminHandler) DeleteWinning(c echo.Context) error {
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
	if err := h.Draws.Delete(ctx, a, id); err != nil {
		return fail(c, err)
	}
	h.resultsChanged(ctx)
	return c.NoContent(http.StatusNoContent)
}

// ----- settings -----

// FormSettings: GET /v1/admin/settings/form
func (h *AdminHandler) FormSettings(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Gates.FormStatus(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// SetCloseTime: PUT /v1/admin/settings/form/close-time {form_close_date}
func (h *AdminHandler) SetCloseTime(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		FormCloseDate *time.Time `json:"form_close_date"`
	}
	if err := c.Bind(&req); err != nil || req.FormCloseDate == nil {
		return badRequest(c, "form_close_date required (RFC3339)")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Gates.SetCloseTime(ctx, a, *req.FormCloseDate)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": s})
}

// ToggleForm: PUT /v1/admin/settings/form/toggle {open}
func (h *AdminHandler) ToggleForm(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Open *bool `json:"open"`
	}
	if err := c.Bind(&req); err != nil || req.Open == nil {
		return badRequest(c, "open required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Gates.ToggleForm(ctx, a, *req.Open)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"settings": s})
}

// PublishSettings: GET /v1/admin/settings/publish
func (h *AdminHandler) PublishSettings(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Gates.PublishStatus(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// SetPublishWindow: PUT /v1/admin/settings/publish/window {start, end}
func (h *AdminHandler) SetPublishWindow(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Start *time.Time `json:"publish_start_date"`
		End   *time.Time `json:"publish_end_date"`
	}
	if err := c.Bind(&req); err != nil || req.Start == nil || req.End == nil {
		return badRequest(c, "publish_start_date and publish_end_date required (RFC3339)")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Gates.SetPublishWindow(ctx, a, *req.Start, *req.End)
	if err != nil {
		return fail(c, err)
	}
	h.resultsChanged(ctx)
	return c.JSON(http.StatusOK, echo.Map{"settings": s})
}

// TogglePublish: PUT /v1/admin/settings/publish/toggle {published}
func (h *AdminHandler) TogglePublish(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req struct {
		Published *bool `json:"published"`
	}
	if err := c.Bind(&req); err != nil || req.Published == nil {
		return badRequest(c, "published required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Gates.TogglePublish(ctx, a, *req.Published)
	if err != nil {
		return fail(c, err)
	}
	h.resultsChanged(ctx)
	return c.JSON(http.StatusOK, echo.Map{"settings": s})
}
