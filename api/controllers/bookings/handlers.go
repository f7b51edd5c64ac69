package bookings

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/api/middleware"
	"github.com/angelmondragon/pestguard-backend/api/responses"
	"github.com/angelmondragon/pestguard-backend/api/validators"
	bookingsvc "github.com/angelmondragon/pestguard-backend/internal/bookings"
	pkgAuth "github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

const bookingIDParam = "bookingId"

// Create books a service slot. Staff may book for a customer or a lead.
func Create(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.Create(r.Context(), middleware.ActorFromContext(r.Context()), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, booking)
	}
}

func Get(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		return svc.Get(r.Context(), actor, id)
	})
}

// Events returns the booking's audit history oldest first.
func Events(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		return svc.History(r.Context(), actor, id)
	})
}

func Cancel(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		return svc.Cancel(r.Context(), actor, id)
	})
}

// Complete is called by the assigned worker once the job is done.
func Complete(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		return svc.Complete(r.Context(), actor, id)
	})
}

// Update applies a customer edit to schedule or notes.
func Update(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		var payload patchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Update(r.Context(), actor, id, payload.toPatch())
	})
}

// List pages through the caller's bookings. Workers pass assigned=true for their job list.
func List(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		limit, err := validators.ParseQueryLimit(r, "limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := bookingsvc.ListParams{
			Limit:    limit,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
			Assigned: validators.ParseQueryBool(r, "assigned"),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseBookingStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		page, err := svc.List(r.Context(), middleware.ActorFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

type bookingAction func(r *http.Request, actor pkgAuth.Actor, bookingID uuid.UUID) (any, error)

func withBooking(svc bookingsvc.Service, logg *logger.Logger, action bookingAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		bookingID, err := validators.ParseUUIDParam(r, bookingIDParam)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithBookingID(ctx, bookingID.String())
			r = r.WithContext(ctx)
		}

		result, err := action(r, middleware.ActorFromContext(ctx), bookingID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
