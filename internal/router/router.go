package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/neighborhood-lottery/internal/handler"
	"github.com/iliyamo/neighborhood-lottery/internal/middleware"
	"github.com/iliyamo/neighborhood-lottery/internal/model"
)

// Handlers groups everything RegisterRoutes mounts.
type Handlers struct {
	Health     *handler.HealthHandler
	Auth       *handler.AuthHandler
	Profile    *handler.ProfileHandler
	Selections *handler.SelectionHandler
	Results    *handler.ResultsHandler
	Admin      *handler.AdminHandler
	Jobs       *handler.JobHandler
}

// Middlewares are the optional Redis-backed layers.  Nil entries are skipped.
type Middlewares struct {
	RateLimit echo.MiddlewareFunc // selection writes
	Cache     echo.MiddlewareFunc // public results
}

// RegisterRoutes mounts the whole API.  Unauthenticated operations are
// /healthz and /v1/auth/*; everything else needs a bearer access token, and
// /v1/admin additionally the admin role.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middlewares, jwtSecret string) {
	e.GET("/healthz", h.Health.Health)

	a := e.Group("/v1/auth")
	a.POST("/register", h.Auth.Register)
	a.POST("/login", h.Auth.Login)
	// Rotates the refresh token.
	a.POST("/refresh", h.Auth.Refresh)
	// New access token only.
	a.POST("/refresh-access", h.Auth.RefreshAccess)
	a.POST("/logout", h.Auth.Logout)
	e.POST("/v1/logout", h.Auth.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleUser, model.RoleAdmin))

	auth.GET("/me", h.Profile.Me)
	auth.PATCH("/me", h.Profile.UpdateMe)
	auth.GET("/me/payment", h.Profile.MyPayment)

	auth.GET("/form", h.Selections.FormStatus)
	auth.GET("/selections", h.Selections.History)
	rl := optional(mw.RateLimit)
	auth.POST("/selections", h.Selections.Submit, rl...)
	auth.POST("/selections/resend", h.Selections.Resend, rl...)
	auth.PUT("/selections/:id", h.Selections.Update, rl...)
	auth.DELETE("/selections/:id", h.Selections.Delete, rl...)
	auth.PATCH("/selections/:id/hide", h.Selections.Hide, rl...)

	auth.GET("/results", h.Results.Results, optional(mw.Cache)...)
	auth.GET("/winning-numbers/current", h.Results.CurrentWinning, optional(mw.Cache)...)

	registerAdmin(auth.Group("/admin", middleware.RequireRole(model.RoleAdmin)), h)
}

func registerAdmin(g *echo.Group, h Handlers) {
	ad := h.Admin
	g.GET("/stats", ad.Stats)
	g.GET("/activity", ad.ActivityLog)

	g.GET("/submissions", ad.Submissions)
	g.PATCH("/submissions/:id/color", ad.SetColor)
	g.PATCH("/submissions/:id/paid", ad.SetPaid)
	g.DELETE("/submissions/:id", ad.DeleteSubmission)
	g.POST("/submissions/color", ad.ColorSelected)
	g.POST("/submissions/color-nicknames", ad.ColorNicknames)
	g.POST("/submissions/turn-red", ad.TurnAllRed)
	g.POST("/submissions/delete", ad.DeleteSelected)
	g.POST("/submissions/delete-nicknames", ad.DeleteNicknames)

	g.GET("/publish", ad.PublishList)
	g.POST("/publish/selected", ad.PublishSelected)
	g.POST("/publish/all", ad.PublishAll)
	g.POST("/unpublish/selected", ad.UnpublishSelected)
	g.POST("/unpublish/all", ad.UnpublishAll)

	g.GET("/settings/form", ad.FormSettings)
	g.PUT("/settings/form/close-time", ad.SetCloseTime)
	g.PUT("/settings/form/toggle", ad.ToggleForm)
	g.GET("/settings/publish", ad.PublishSettings)
	g.PUT("/settings/publish/window", ad.SetPublishWindow)
	g.PUT("/settings/publish/toggle", ad.TogglePublish)

	g.GET("/winning-numbers", ad.ListWinning)
	g.POST("/winning-numbers", ad.CreateWinning)
	g.DELETE("/winning-numbers/:id", ad.DeleteWinning)

	g.GET("/users", ad.ListUsers)
	g.PATCH("/users/:id/role", ad.SetRole)
	g.PATCH("/users/:id/group", ad.SetGroup)
	g.PATCH("/users/:id/display-name", ad.SetDisplayName)
	g.POST("/users/:id/reset-password", ad.ResetPassword)
	g.DELETE("/users/:id", ad.DeleteUser)

	g.GET("/payments", ad.ListPayments)
	g.GET("/payments/:email", ad.GetPayment)
	g.PUT("/payments/:email", ad.SetPayment)
	g.PUT("/payments/:email/unpaid", ad.SetUnpaid)

	g.GET("/jobs/current", h.Jobs.Current)
	g.GET("/jobs/:id", h.Jobs.Get)
	g.GET("/jobs/:id/ws", h.Jobs.Stream)
}

func optional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
