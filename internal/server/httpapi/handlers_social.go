package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/dmitrijs2005/spa-auth/internal/common"
)

const stateSize = 32

type socialURLResponse struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// newState stores a fresh state value in a cookie and returns the provider
// authorization URL bound to it.
func (s *Server) newState(w http.ResponseWriter, provider string) (string, error) {
	state, err := common.MakeRandURLString(stateSize)
	if err != nil {
		return "", err
	}
	url, err := s.svc.Social.AuthURL(provider, state)
	if err != nil {
		return "", err
	}
	s.setStateCookie(w, state)
	return url, nil
}

func (s *Server) handleSocialRedirect(w http.ResponseWriter, r *http.Request) {
	url, err := s.newState(w, r.PathValue("provider"))
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleSocialURL(w http.ResponseWriter, r *http.Request) {
	url, err := s.newState(w, r.PathValue("provider"))
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, socialURLResponse{URL: url, Status: "success"})
}

func (s *Server) handleSocialCallback(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	if !s.svc.Social.Supports(provider) {
		writeMessage(w, http.StatusBadRequest, "Unsupported provider.")
		return
	}

	if err := r.ParseForm(); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request.")
		return
	}
	code, state := r.Form.Get("code"), r.Form.Get("state")

	cookie, err := r.Cookie(common.OAuthStateCookieName)
	s.clearStateCookie(w)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		s.logger.Warn(r.Context(), "social callback state mismatch", "provider", provider)
		writeMessage(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	user, pair, err := s.svc.Social.Callback(r.Context(), provider, code)
	if err != nil {
		s.logger.Warn(r.Context(), "social callback failed", "provider", provider, "error", err)
		writeMessage(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	s.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, newTokenResponse(pair, "Login successful.", user))
}
