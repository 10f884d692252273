package controllers

import (
	"net/http"

	"github.com/vendora-market/vendora-backend/api/responses"
	"github.com/vendora-market/vendora-backend/api/validators"
	"github.com/vendora-market/vendora-backend/internal/reconcile"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

// RunReconcile triggers an on-demand orphan sweep. The hours_threshold query
// parameter overrides the configured default.
func RunReconcile(svc reconcile.Service, defaultHours int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hours, err := validators.ParseQueryInt(r, "hours_threshold", defaultHours, reconcile.MinStaleHours, reconcile.MaxStaleHours)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		counts, err := svc.Run(r.Context(), hours)
		if err != nil {
			// Partial counts still matter to the operator; surface the error.
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, counts)
	}
}
