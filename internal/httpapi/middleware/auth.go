package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Keys holds the API keys per role. Admin keys also pass public checks.
type Keys struct {
	Public []string
	Admin  []string
}

type role int

const (
	roleNone role = iota
	rolePublic
	roleAdmin
)

func (k Keys) roleOf(key string) role {
	if key == "" {
		return roleNone
	}
	if matchAny(key, k.Admin) {
		return roleAdmin
	}
	if matchAny(key, k.Public) {
		return rolePublic
	}
	return roleNone
}

func matchAny(key string, set []string) bool {
	found := false
	for _, k := range set {
		// no early exit so timing does not reveal which key matched
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			found = true
		}
	}
	return found
}

// presentedKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func deny(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// require lets a request through when its role is at least min. Without any
// configured key for min (or above) everything passes, for local dev.
func require(keys Keys, min role) func(http.Handler) http.Handler {
	enabled := len(keys.Admin) > 0 || (min == rolePublic && len(keys.Public) > 0)
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := presentedKey(r)
			switch got := keys.roleOf(key); {
			case got >= min:
				next.ServeHTTP(w, r)
			case got == rolePublic:
				deny(w, http.StatusForbidden, "forbidden")
			default:
				deny(w, http.StatusUnauthorized, "unauthorized")
			}
		})
	}
}

// RequireAny allows requests that present either a public or admin key.
func RequireAny(keys Keys) func(http.Handler) http.Handler { return require(keys, rolePublic) }

// RequireAdmin permits admin keys only: a public key gets 403, anything else 401.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler { return require(keys, roleAdmin) }
