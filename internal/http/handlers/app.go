package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"portraitstudio/internal/studio"
)

// CheckoutInfo is what the storefront needs to open the payment widget.
type CheckoutInfo struct {
	KeyID   string `json:"key_id,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// App holds the dependencies of the HTTP handlers.
type App struct {
	Studio   *studio.Service
	Logger   zerolog.Logger
	Checkout CheckoutInfo

	upgrader   websocket.Upgrader
	background sync.WaitGroup
}

// NewApp builds the handler set. allowedOrigins restricts WebSocket upgrades
// the same way CORS restricts plain requests.
func NewApp(svc *studio.Service, logger zerolog.Logger, checkout CheckoutInfo, allowedOrigins []string) *App {
	return &App{
		Studio:   svc,
		Logger:   logger,
		Checkout: checkout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// Wait blocks until background generations started by payment callbacks finish.
func (a *App) Wait() {
	a.background.Wait()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error   errorBody    `json:"error"`
	Session *sessionView `json:"session,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorEnvelope{Error: errorBody{Code: errCode, Message: message}})
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	anyOrigin := false
	for _, o := range allowed {
		if o == "*" {
			anyOrigin = true
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || anyOrigin {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
