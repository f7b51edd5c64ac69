package bookings

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/api/validators"
	bookingsvc "github.com/angelmondragon/pestguard-backend/internal/bookings"
	pkgAuth "github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

// AdminAccept moves a pending booking to accepted.
func AdminAccept(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		return svc.Accept(r.Context(), actor, id)
	})
}

// AdminAssign takes either workerUserId or a one-element workerUserIds list.
func AdminAssign(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		var payload assignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Assign(r.Context(), actor, id, payload.toInput())
	})
}

func AdminReassign(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		var payload reassignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Reassign(r.Context(), actor, id, payload.WorkerUserID)
	})
}

// AdminAssignments lists every worker the booking has been assigned to.
func AdminAssignments(svc bookingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return withBooking(svc, logg, func(r *http.Request, actor pkgAuth.Actor, id uuid.UUID) (any, error) {
		return svc.Assignments(r.Context(), actor, id)
	})
}
