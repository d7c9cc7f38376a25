package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/spa-auth/internal/server/services"
)

type forgetPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token                string `json:"token"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (s *Server) handleForgetPassword(w http.ResponseWriter, r *http.Request) {
	var req forgetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	if err := s.svc.PasswordReset.SendResetLink(r.Context(), req.Email); err != nil {
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	writeMessage(w, http.StatusOK, "We have emailed your password reset link.")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	err := s.svc.PasswordReset.Reset(r.Context(), services.ResetPasswordInput{
		Email:                req.Email,
		Token:                req.Token,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	writeMessage(w, http.StatusOK, "Your password has been reset.")
}
