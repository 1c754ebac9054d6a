package server

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-storefront/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var creds users.Credentials
		if err := decodeBody(r, &creds); err != nil {
			writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
			return
		}
		if err := creds.Validate(); err != nil {
			writeValidationError(w, err)
			return
		}

		user, err := s.users.GetByEmail(strings.TrimSpace(creds.Email))
		if err != nil || !user.CheckPassword(creds.Password) {
			writeError(w, http.StatusUnauthorized, "Credenciales inválidas")
			return
		}
		if !user.Active {
			writeError(w, http.StatusForbidden, "Usuario inactivo")
			return
		}

		s.respondWithSession(w, r, http.StatusOK, user)
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data users.RegisterData
		if err := decodeBody(r, &data); err != nil {
			writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido")
			return
		}
		if err := data.Validate(); err != nil {
			writeValidationError(w, err)
			return
		}

		hash, err := users.HashPassword(data.Password)
		if err != nil {
			logError(r.Method, r.URL.Path, err.Error())
			writeError(w, http.StatusInternalServerError, "Error interno del servidor")
			return
		}
		user := &users.User{
			Email:        strings.TrimSpace(data.Email),
			PasswordHash: hash,
			FirstName:    data.FirstName,
			LastName:     data.LastName,
			Phone:        data.Phone,
			Address:      data.Address,
			Active:       true,
			CreatedAt:    s.nowFunc(),
		}
		if err := s.users.Insert(user); err != nil {
			if errors.Is(err, users.ErrEmailTaken) {
				writeError(w, http.StatusConflict, "El email ya está registrado")
				return
			}
			logError(r.Method, r.URL.Path, err.Error())
			writeError(w, http.StatusInternalServerError, "Error interno del servidor")
			return
		}

		s.respondWithSession(w, r, http.StatusCreated, user)
	}
}

func (s *Server) respondWithSession(w http.ResponseWriter, r *http.Request, status int, user *users.User) {
	accessToken, err := s.issueToken(user, false)
	if err != nil {
		logError(r.Method, r.URL.Path, err.Error())
		writeError(w, http.StatusInternalServerError, "Error interno del servidor")
		return
	}
	writeJSON(w, r, status, users.AuthResponse{AccessToken: accessToken, User: *user})
}

// LogoutHandler revokes the presented token
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		s.revokeToken(claims.ID, claims.ExpiresAt)
		writeMessage(w, http.StatusOK, "Sesión cerrada")
	}
}

// LogoutAllHandler revokes every token issued to the user
func (s *Server) LogoutAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		revoked := s.revokeAll(user.ID)
		log.Info().Str("user", user.ID).Int("tokens", revoked).Msg("[Server.LogoutAll] sessions revoked")
		writeMessage(w, http.StatusOK, "Todas las sesiones fueron cerradas")
	}
}

func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, userFromContext(r.Context()))
	}
}
