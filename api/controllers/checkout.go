package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rtwroastery/roastery-backend/api/middleware"
	"github.com/rtwroastery/roastery-backend/api/responses"
	"github.com/rtwroastery/roastery-backend/api/validators"
	"github.com/rtwroastery/roastery-backend/internal/payments"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

const maxSessionIDLength = 255

// CheckoutSession opens a hosted payment session for a pending order.
func CheckoutSession(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body payments.CreateSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, body.OrderID.String())
		}
		session, err := svc.CreateSession(ctx, userID, body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// CheckoutStatus reports, and on first observation confirms, a session's
// payment state.
func CheckoutStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sessionID := validators.CleanText(chi.URLParam(r, "sessionId"), maxSessionIDLength)
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session id is required"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSessionID(ctx, sessionID)
		}
		status, err := svc.Status(ctx, userID, sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
