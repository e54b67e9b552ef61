package httpx

import (
	"context"
	"net/http"
)

// Principal is the authenticated caller, issued by the upstream identity
// gateway and forwarded on trusted headers. Identity itself is out of scope
// here; this service only consumes the result.
type Principal struct {
	ID         string
	Role       string
	PharmacyID string
}

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleCustomer   = "customer"
	RoleCourier    = "courier"
)

type principalKey struct{}

// WithPrincipal extracts the gateway-injected identity headers. Requests
// without an identity are rejected; every route behind this middleware
// expects an authenticated caller.
func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Principal{
			ID:         r.Header.Get("X-User-Id"),
			Role:       r.Header.Get("X-User-Role"),
			PharmacyID: r.Header.Get("X-Pharmacy-Id"),
		}
		if p.ID == "" || p.Role == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing identity"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// requirePharmacy enforces that the caller is a pharmacist (or admin) acting
// for the given pharmacy. Writes the 403 itself and reports success.
func requirePharmacy(w http.ResponseWriter, r *http.Request, pharmacyID string) bool {
	p := PrincipalFrom(r.Context())
	if p.Role == RoleAdmin {
		return true
	}
	if p.Role == RolePharmacist && p.PharmacyID == pharmacyID {
		return true
	}
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	return false
}

func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	p := PrincipalFrom(r.Context())
	for _, role := range roles {
		if p.Role == role {
			return true
		}
	}
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	return false
}
