package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brandops/platform-backend/api/middleware"
	"github.com/brandops/platform-backend/api/validators"
	pkgerrors "github.com/brandops/platform-backend/pkg/errors"
	"github.com/brandops/platform-backend/pkg/pagination"
)

// actorFromRequest resolves the authenticated user id, if any.
func actorFromRequest(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// brandFromRequest resolves the brand scope: an explicit brandId query param
// wins, otherwise the active brand from the token is used.
func brandFromRequest(r *http.Request) (*uuid.UUID, error) {
	raw := r.URL.Query().Get("brandId")
	if raw == "" {
		raw = middleware.BrandIDFromContext(r.Context())
	}
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid brandId")
	}
	return &id, nil
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+param)
	}
	return id, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}
