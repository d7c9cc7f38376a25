package httpapi

import "net/http"

type revokeSessionsRequest struct {
	Email string `json:"email"`
}

type revokeSessionsResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

func (s *Server) handleAdminRevokeSessions(w http.ResponseWriter, r *http.Request) {
	var req revokeSessionsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	n, err := s.svc.Admin.RevokeSessions(r.Context(), req.Email)
	if err != nil {
		s.writeError(r.Context(), w, err, http.StatusUnprocessableEntity)
		return
	}

	s.logger.Info(r.Context(), "sessions revoked by admin", "email", req.Email, "count", n)
	writeJSON(w, http.StatusOK, revokeSessionsResponse{Message: "Sessions revoked.", Revoked: n})
}
