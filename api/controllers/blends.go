package controllers

import (
	"net/http"

	"github.com/rtwroastery/roastery-backend/api/middleware"
	"github.com/rtwroastery/roastery-backend/api/responses"
	"github.com/rtwroastery/roastery-backend/api/validators"
	"github.com/rtwroastery/roastery-backend/internal/blends"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

// BlendCreate stores a custom blend for the caller.
func BlendCreate(svc blends.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blend service unavailable"))
			return
		}
		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body blends.CreateBlendRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Name = validators.CleanText(body.Name, 120)

		blend, err := svc.Create(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, blend)
	}
}

func BlendList(svc blends.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blend service unavailable"))
			return
		}
		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// BlendDetail returns one of the caller's blends; other users' blends are 404.
func BlendDetail(svc blends.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "blend service unavailable"))
			return
		}
		userID, err := middleware.AuthenticatedUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blendID, err := validators.ParseUUIDParam(r, "blendId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		blend, err := svc.Get(r.Context(), userID, blendID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, blend)
	}
}
