package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/spa-auth/internal/server/auth"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
)

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type avatarUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	user, pair, err := s.svc.Auth.Register(r.Context(), services.RegisterInput{
		Name:                 req.Name,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusCreated, newTokenResponse(pair, "User successfully registered. Please verify your email address.", user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	user, pair, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, newTokenResponse(pair, "Login successful.", user))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	pair, err := s.svc.Auth.Refresh(r.Context(), refreshTokenFrom(r, req.RefreshToken))
	if err != nil {
		s.clearRefreshCookie(w)
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, newTokenResponse(pair, "", nil))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	ac := auth.FromContext(r.Context())
	if err := s.svc.Auth.Logout(r.Context(), ac, refreshTokenFrom(r, req.RefreshToken)); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	s.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "Successfully logged out.")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	account, err := s.svc.Auth.Me(r.Context(), ac.UserID)
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	resp := newUserResponse(account.User)
	resp.Roles = account.Roles
	resp.Permissions = account.Permissions

	if s.svc.Avatars != nil {
		url, err := s.svc.Avatars.AvatarURL(r.Context(), account.User)
		if err != nil {
			s.logger.Warn(r.Context(), "avatar url failed", "user_id", ac.UserID, "error", err)
		} else {
			resp.Avatar = url
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAvatarUpload(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromContext(r.Context())

	up, err := s.svc.Avatars.PresignUpload(r.Context(), ac.UserID)
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, http.StatusOK, avatarUploadResponse{Key: up.Key, URL: up.URL})
}
