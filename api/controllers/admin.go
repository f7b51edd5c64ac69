package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pestguard-backend/api/middleware"
	"github.com/angelmondragon/pestguard-backend/api/responses"
	"github.com/angelmondragon/pestguard-backend/api/validators"
	"github.com/angelmondragon/pestguard-backend/internal/tags"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

type setTagRequest struct {
	Tag  string  `json:"tag" validate:"max=64"`
	Note *string `json:"note,omitempty"`
}

type grantRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=worker admin"`
}

// AdminSetCustomerTag classifies a registered customer or a lead. An empty tag clears it.
func AdminSetCustomerTag(svc tags.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tag service unavailable"))
			return
		}

		kind, err := enums.ParseCustomerTagKind(chi.URLParam(r, "kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "kind must be registered or lead"))
			return
		}
		entityID, err := validators.ParseUUIDParam(r, "entityId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setTagRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tag, err := svc.Set(r.Context(), middleware.ActorFromContext(r.Context()), tags.SetInput{
			Kind:     kind,
			EntityID: entityID,
			Tag:      body.Tag,
			Note:     body.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tag)
	}
}

func AdminGrantRole(svc users.RoleService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "role service unavailable"))
			return
		}

		userID, err := validators.ParseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body grantRoleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseRole(body.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		user, err := svc.Grant(r.Context(), middleware.ActorFromContext(r.Context()), userID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
