package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/pagination"
)

// ParseUUIDParam reads a chi path parameter as a uuid.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, name+" must be a uuid").WithDetails(map[string]any{"field": name})
	}
	return id, nil
}

// ParseQueryBool treats "true" and "1" as set; anything else is false.
func ParseQueryBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key))) {
	case "true", "1":
		return true
	}
	return false
}

// ParseQueryLimit reads a page size. Missing means pagination.DefaultLimit;
// anything outside 1..pagination.MaxLimit is rejected rather than clamped.
func ParseQueryLimit(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return pagination.DefaultLimit, nil
	}
	details := map[string]any{"field": key, "min": 1, "max": pagination.MaxLimit}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, key+" must be a whole number").WithDetails(details)
	}
	if value < 1 || value > pagination.MaxLimit {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").WithDetails(details)
	}
	return value, nil
}
