package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/middleware"
	"github.com/iliyamo/neighborhood-lottery/internal/model"
	"github.com/iliyamo/neighborhood-lottery/internal/repository"
	"github.com/iliyamo/neighborhood-lottery/internal/service"
)

const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// actor builds the service caller from the identity JWTAuth stored.
func actor(c echo.Context) (service.Actor, bool) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: id.UserID, Email: id.Email, Name: id.Name, Role: id.Role}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": service.ErrInvalidInput.Error(), "message": msg})
}

// fail maps service and repository errors to a status and error code.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateSubmission),
		errors.Is(err, service.ErrGreenExists),
		errors.Is(err, service.ErrJobRunning),
		errors.Is(err, service.ErrNoSettings),
		errors.Is(err, service.ErrNoPublishWindow),
		errors.Is(err, service.ErrLastAdmin):
		return c.JSON(http.StatusConflict, echo.Map{"error": rootCode(err)})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "EMAIL_EXISTS"})
	case errors.Is(err, service.ErrFormLocked):
		return c.JSON(http.StatusLocked, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrEditWindowClosed):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidWindow):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": service.ErrInvalidWindow.Error()})
	case service.IsValidation(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": service.ErrInvalidInput.Error(), "message": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "NOT_FOUND"})
	}
	c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "INTERNAL"})
}

// rootCode returns the sentinel code even when err was wrapped with detail.
func rootCode(err error) string {
	for _, s := range []error{
		service.ErrDuplicateSubmission, service.ErrGreenExists, service.ErrJobRunning,
		service.ErrNoSettings, service.ErrNoPublishWindow, service.ErrLastAdmin,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return err.Error()
}

func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// jobAccepted answers a bulk request with the started job's progress.
func jobAccepted(c echo.Context, job *service.Job, err error) error {
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"job": job.Progress()})
}

// selectionFilter reads the admin list filters: search, color, from, to
// (YYYY-MM-DD, inclusive) and limit.
func selectionFilter(c echo.Context) (repository.SelectionFilter, error) {
	var f repository.SelectionFilter
	f.Search = strings.TrimSpace(c.QueryParam("search"))
	if s := c.QueryParam("color"); s != "" && s != "all" {
		color, ok := model.ParseColorTag(s)
		if !ok {
			return f, errors.New("unknown color")
		}
		f.Color = color
	}
	if s := c.QueryParam("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, errors.New("from must be YYYY-MM-DD")
		}
		f.From = &t
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return f, errors.New("to must be YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.To = &end
	}
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a positive number")
		}
		f.Limit = n
	}
	return f, nil
}

type idsReq struct {
	IDs []uint64 `json:"ids"`
}

type nicknamesReq struct {
	Nicknames []string `json:"nicknames"`
	Color     string   `json:"color"`
}

type colorReq struct {
	IDs   []uint64 `json:"ids"`
	Color string   `json:"color"`
}
