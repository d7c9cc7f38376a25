package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/spa-auth/internal/common"
)

// Handler returns the routed handler with CORS and metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc, mw ...func(http.Handler) http.Handler) http.Handler {
		var next http.Handler = h
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return s.requireAuth(next)
	}

	mux.HandleFunc("GET /ping", s.handlePing)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.Handle("POST /logout", authed(s.handleLogout))
	mux.Handle("GET /me", authed(s.handleMe))
	mux.Handle("GET /user", authed(s.handleMe))
	mux.Handle("POST /me/avatar", authed(s.handleAvatarUpload))

	mux.HandleFunc("POST /forget-password", s.handleForgetPassword)
	mux.HandleFunc("POST /reset-password", s.handleResetPassword)

	mux.Handle("GET /email/verify/{id}/{hash}", Throttle(s.verifyLimiter, "verify", s.metrics)(http.HandlerFunc(s.handleVerifyEmail)))
	mux.Handle("POST /resend", Throttle(s.resendLimiter, "resend", s.metrics)(http.HandlerFunc(s.handleResend)))

	mux.HandleFunc("GET /auth/{provider}", s.handleSocialRedirect)
	mux.HandleFunc("GET /auth/{provider}/url", s.handleSocialURL)
	mux.HandleFunc("GET /auth/{provider}/callback", s.handleSocialCallback)
	mux.HandleFunc("POST /auth/{provider}/callback", s.handleSocialCallback)

	mux.Handle("GET /tasks", authed(s.handleListTasks, RequirePermission(common.PermissionViewTask)))
	mux.Handle("POST /tasks", authed(s.handleCreateTask, RequirePermission(common.PermissionCreateTask)))
	mux.Handle("GET /tasks/{id}", authed(s.handleGetTask, RequirePermission(common.PermissionViewTask)))
	mux.Handle("PATCH /tasks/{id}", authed(s.handleUpdateTask, RequirePermission(common.PermissionEditTask)))
	mux.Handle("PUT /tasks/{id}", authed(s.handleUpdateTask, RequirePermission(common.PermissionEditTask)))
	mux.Handle("DELETE /tasks/{id}", authed(s.handleDeleteTask, RequirePermission(common.PermissionDeleteTask)))

	mux.Handle("POST /admin/revoke-sessions", authed(s.handleAdminRevokeSessions, RequireRole(common.RoleAdmin)))

	return s.cors(s.instrument(mux))
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
