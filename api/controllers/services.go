package controllers

import (
	"net/http"

	"github.com/angelmondragon/pestguard-backend/api/responses"
	"github.com/angelmondragon/pestguard-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

// ServicesList returns the active, bookable catalogue.
func ServicesList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		list, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
