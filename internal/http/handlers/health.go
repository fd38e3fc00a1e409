package handlers

import (
	"net/http"
	"time"
)

type healthView struct {
	Status          string    `json:"status"`
	CheckoutSandbox bool      `json:"checkout_sandbox"`
	Time            time.Time `json:"time"`
}

// Health reports liveness and whether checkout runs against the sandbox.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, healthView{
		Status:          "ok",
		CheckoutSandbox: a.Checkout.Sandbox,
		Time:            time.Now().UTC(),
	})
}
