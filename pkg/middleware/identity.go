package middleware

import (
	"net/http"

	"event-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserIDHeader carries the caller identity resolved by the upstream gateway.
const UserIDHeader = "X-User-ID"

// Identity puts the caller's user id into the request context. Requests
// without a valid id are rejected.
func Identity(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(UserIDHeader)
			if raw == "" {
				utils.ResponseUnauthorized(w, "Missing "+UserIDHeader+" header")
				return
			}

			userID, err := uuid.Parse(raw)
			if err != nil || userID == uuid.Nil {
				logger.Warn("Invalid caller identity",
					zap.String("header", raw),
					zap.String("path", r.URL.Path))
				utils.ResponseUnauthorized(w, "Invalid "+UserIDHeader+" header")
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.SetUserContext(r.Context(), userID)))
		})
	}
}
