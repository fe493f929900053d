package handler

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"telemetry-service/internal/models"
	"telemetry-service/internal/tenant"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// TenantFromContext returns the authenticated tenant set by AuthMiddleware.
func TenantFromContext(ctx context.Context) (*models.Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey).(*models.Tenant)
	return t, ok
}

// AuthMiddleware resolves the tenant from the X-Tenant-ID and X-API-Key
// headers and rejects the request when the token does not verify.
func AuthMiddleware(tenants *tenant.Service, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get("X-Tenant-ID")
			token := r.Header.Get("X-API-Key")

			t, err := tenants.Authenticate(r.Context(), tenantID, token)
			if err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, tenant.ErrTenantSuspended) {
					status = http.StatusForbidden
				}
				respondWithError(w, status, err, "Authentication failed")
				return
			}

			ctx := context.WithValue(r.Context(), tenantContextKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GzipRequestMiddleware transparently decompresses gzip request bodies.
// Agents compress event batches on the wire.
func GzipRequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, err, "Invalid gzip body")
				return
			}
			defer gz.Close()
			r.Body = gz
			r.Header.Del("Content-Encoding")
		}
		next.ServeHTTP(w, r)
	})
}
