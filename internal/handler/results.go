package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/repository"
	"github.com/iliyamo/neighborhood-lottery/internal/service"
)

// ResultsHandler serves the public results page and the current draw.
// Both routes sit behind the response cache.
type ResultsHandler struct {
	Publication *service.Publication
	Draws       *service.Draws
}

func NewResultsHandler(p *service.Publication, d *service.Draws) *ResultsHandler {
	return &ResultsHandler{Publication: p, Draws: d}
}

// Results: GET /v1/results?search=
func (h *ResultsHandler) Results(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	view, err := h.Publication.Results(ctx, c.QueryParam("search"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// CurrentWinning: GET /v1/winning-numbers/current.  No draw yet answers
// {"winning_numbers": null}.
func (h *ResultsHandler) CurrentWinning(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	w, err := h.Draws.Current(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"winning_numbers": w})
}
