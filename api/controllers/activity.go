package controllers

import (
	"net/http"

	"github.com/brandops/platform-backend/api/responses"
	"github.com/brandops/platform-backend/internal/activitylog"
	"github.com/brandops/platform-backend/pkg/logger"
)

func ListActivity(svc activitylog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		brandID, err := brandFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := activitylog.ListFilter{BrandID: brandID}
		if name := r.URL.Query().Get("event"); name != "" {
			filter.EventName = &name
		}

		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
