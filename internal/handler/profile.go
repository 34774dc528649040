package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/service"
)

// ProfileHandler serves /v1/me.
type ProfileHandler struct {
	Accounts *service.Accounts
	Ledger   *service.Ledger
}

func NewProfileHandler(a *service.Accounts, l *service.Ledger) *ProfileHandler {
	return &ProfileHandler{Accounts: a, Ledger: l}
}

type profileReq struct {
	FullName    *string `json:"full_name"`
	DisplayName *string `json:"display_name"`
	Nickname    *string `json:"nickname"`
	Phone       *string `json:"phone"`
}

// Me: GET /v1/me
func (h *ProfileHandler) Me(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.Me(ctx, a)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// UpdateMe: PATCH /v1/me.  Omitted fields stay unchanged.
func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Accounts.UpdateMe(ctx, a, service.ProfileInput{
		FullName:    req.FullName,
		DisplayName: req.DisplayName,
		Nickname:    req.Nickname,
		Phone:       req.Phone,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// MyPayment: GET /v1/me/payment
func (h *ProfileHandler) MyPayment(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	e, err := h.Ledger.Get(ctx, a.Email)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment": e})
}
