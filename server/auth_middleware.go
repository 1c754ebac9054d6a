package server

import (
	"context"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	tokenjwt "github.com/jrsteele09/go-storefront/token/jwt"
	"github.com/jrsteele09/go-storefront/users"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUser stores the authenticated user
	ContextKeyUser ContextKey = "user"
	// ContextKeyClaims stores parsed token claims
	ContextKeyClaims ContextKey = "claims"
	// ContextKeyRotatedToken stores a fresh token to hand back in the response body
	ContextKeyRotatedToken ContextKey = "rotated_token"
)

const msgUnauthorized = "Token inválido o expirado"

// RequireAuth validates the Bearer access token. Tokens older than the
// rotation age get a replacement minted, which writeJSON embeds in the body.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		rawToken, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(rawToken) == "" {
			writeError(w, http.StatusUnauthorized, "Token no proporcionado")
			return
		}

		if _, err := s.signer.Verify(rawToken, jwtlib.WithTimeFunc(s.nowFunc)); err != nil {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		claims, err := tokenjwt.Decode(rawToken)
		if err != nil || claims.ID == "" || s.revoked.IsRevoked(claims.ID) {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		user, err := s.users.GetByID(claims.Subject)
		if err != nil || !user.Active {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeyUser, user)
		ctx = context.WithValue(ctx, ContextKeyClaims, claims)

		if s.nowFunc().Sub(claims.IssuedAt) > s.config.GetTokenRotateAfter() {
			rotated, err := s.issueToken(user, true)
			if err != nil {
				log.Warn().Err(err).Str("user", user.ID).Msg("[Server.RequireAuth] token rotation failed")
			} else {
				ctx = context.WithValue(ctx, ContextKeyRotatedToken, rotated)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) *users.User {
	user, _ := ctx.Value(ContextKeyUser).(*users.User)
	return user
}

func claimsFromContext(ctx context.Context) *tokenjwt.Claims {
	claims, _ := ctx.Value(ContextKeyClaims).(*tokenjwt.Claims)
	return claims
}

func rotatedTokenFromContext(ctx context.Context) string {
	rotated, _ := ctx.Value(ContextKeyRotatedToken).(string)
	return rotated
}
