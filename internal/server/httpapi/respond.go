package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/spa-auth/internal/common"
	"github.com/dmitrijs2005/spa-auth/internal/server/models"
	"github.com/dmitrijs2005/spa-auth/internal/server/services"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = errors.New("malformed JSON body")

type messageResponse struct {
	Message string `json:"message"`
}

type validationResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	Message      string        `json:"message,omitempty"`
	User         *userResponse `json:"user,omitempty"`
}

type userResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	Provider        string     `json:"provider,omitempty"`
	Avatar          string     `json:"avatar,omitempty"`
	Roles           []string   `json:"roles,omitempty"`
	Permissions     []string   `json:"permissions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type taskResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newUserResponse(u *models.User) *userResponse {
	return &userResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailVerifiedAt,
		Provider:        u.Provider,
		Avatar:          u.Avatar,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func newTaskResponse(t *models.Task) *taskResponse {
	return &taskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func newTokenResponse(p *services.TokenPair, msg string, u *models.User) *tokenResponse {
	resp := &tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
		Message:      msg,
	}
	if u != nil {
		resp.User = newUserResponse(u)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errMalformedBody
	}
	return nil
}

// writeError maps the error taxonomy onto status codes. Internal error
// text never reaches the client. validationStatus is the status used for
// common.ValidationErrors (422 for most forms, 400 for the reset flows).
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error, validationStatus int) {
	var ve common.ValidationErrors
	switch {
	case errors.As(err, &ve):
		writeJSON(w, validationStatus, validationResponse{Message: "The given data was invalid.", Errors: ve})
	case errors.Is(err, errMalformedBody):
		writeMessage(w, http.StatusBadRequest, "Malformed JSON body.")
	case errors.Is(err, common.ErrorInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials.")
	case errors.Is(err, common.ErrorUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
	case errors.Is(err, common.ErrorForbidden):
		writeMessage(w, http.StatusForbidden, "Forbidden.")
	case errors.Is(err, common.ErrorNotFound):
		writeMessage(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, common.ErrorThrottled):
		writeMessage(w, http.StatusTooManyRequests, "Too many requests. Please wait before retrying.")
	case errors.Is(err, common.ErrInvalidResetToken):
		writeMessage(w, http.StatusBadRequest, "This password reset token is invalid.")
	case errors.Is(err, common.ErrUnknownProvider):
		writeMessage(w, http.StatusBadRequest, "Unsupported provider.")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error.")
	}
}
