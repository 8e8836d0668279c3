package httpserver

import "net/http"

// Routes groups API handlers. Session start/stop and the account read go
// through auth middleware; health does not.
type Routes struct {
	SessionStart   http.HandlerFunc
	SessionStop    http.HandlerFunc
	Me             http.HandlerFunc
	ActiveSessions http.HandlerFunc
	Health         http.HandlerFunc

	Auth func(http.Handler) http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.SessionStart != nil {
		mux.Handle("/api/session/start", protect(routes.Auth, method(http.MethodPost, routes.SessionStart)))
	}
	if routes.SessionStop != nil {
		mux.Handle("/api/session/stop", protect(routes.Auth, method(http.MethodPost, routes.SessionStop)))
	}
	if routes.Me != nil {
		mux.Handle("/api/me", protect(routes.Auth, method(http.MethodGet, routes.Me)))
	}
	if routes.ActiveSessions != nil {
		mux.Handle("/api/sessions/active", protect(routes.Auth, method(http.MethodGet, routes.ActiveSessions)))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func protect(auth func(http.Handler) http.Handler, handler http.Handler) http.Handler {
	if auth == nil {
		return handler
	}
	return auth(handler)
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
