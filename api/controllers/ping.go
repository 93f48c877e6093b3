package controllers

import (
	"net/http"

	"github.com/brandops/platform-backend/api/responses"
)

func Ping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"message": "pong"})
	}
}
