package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type resendRequest struct {
	Email string `json:"email"`
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// handleVerifyEmail answers JSON clients with {status}; browsers following
// the mailed link are redirected to the SPA result page.
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := s.svc.Verification.Verify(r.Context(), r.PathValue("id"), r.PathValue("hash"), q.Get("expires"), q.Get("signature"))
	if err != nil {
		status = services.VerificationError
	}

	if wantsJSON(r) {
		code := http.StatusOK
		if status == services.VerificationError {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, statusResponse{Status: status})
		return
	}

	target := strings.TrimRight(s.cfg.FrontendURL, "/") + "/email-verification-result?status=" + url.QueryEscape(status)
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
		return
	}

	err := s.svc.Verification.Resend(r.Context(), req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{Status: services.VerificationSuccess, Message: "Verification link sent."})
	case errors.Is(err, common.ErrEmailAlreadyVerified):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: services.VerificationWarning, Message: "Email already verified."})
	default:
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
	}
}
