package handler

import (
	"context"

	"github.com/iliyamo/neighborhood-lottery/internal/service"
)

// AdminHandler bundles the services behind /v1/admin.  Every route on it is
// wrapped by RequireRole(admin).
type AdminHandler struct {
	Moderation  *service.Moderation
	Publication *service.Publication
	Gates       *service.Gates
	Draws       *service.Draws
	Ledger      *service.Ledger
	Accounts    *service.Accounts
	Activity    *service.Activity
	// ResultsChanged runs after a change the cached results depend on.
	ResultsChanged func(ctx context.Context)
}

func (h *AdminHandler) resultsChanged(ctx context.Context) {
	if h.ResultsChanged != nil {
		h.ResultsChanged(ctx)
	}
}
