package clientinfo

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Middleware parses the Rental-Client header when present and stores the
// result in the request context. The header is optional; a malformed one is
// rejected with 400 so broken builds surface early.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(Header)
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := Parse(header)
			if err != nil {
				logger.Warn("invalid Rental-Client header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "invalid Rental-Client header",
					"details": err.Error(),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
		})
	}
}
