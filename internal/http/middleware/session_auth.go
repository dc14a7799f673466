package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medconnect/scheduling-api/internal/api/respond"
	"github.com/medconnect/scheduling-api/internal/identity"
)

// SessionClaims is the HMAC-signed session token payload issued at login.
type SessionClaims struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	DoctorID int64  `json:"doctor_id,omitempty"`
	jwt.RegisteredClaims
}

// SessionAuth parses the Bearer session token and stores the resulting actor
// in the request context. Requests without a valid token pass through
// anonymous; RequireRole decides what that means per route.
func SessionAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if secret == "" || auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")
			claims := SessionClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid session token")
				return
			}
			role, ok := identity.ParseRole(claims.Role)
			if !ok {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Invalid session token")
				return
			}
			actor := identity.Actor{
				Role:     role,
				Email:    strings.ToLower(strings.TrimSpace(claims.Email)),
				DoctorID: claims.DoctorID,
			}
			next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), actor)))
		})
	}
}

// RequireRole rejects requests whose actor is missing or holds none of the
// given roles.
func RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := make(map[identity.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := identity.ActorFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, respond.CodeUnauthorized, "Unauthorized")
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[actor.Role]; !ok {
					respond.Error(w, http.StatusForbidden, respond.CodeForbidden, "Forbidden")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
