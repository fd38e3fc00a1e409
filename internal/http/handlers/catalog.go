package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"portraitstudio/internal/catalog"
)

type feeView struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type catalogView struct {
	Studio       string          `json:"studio"`
	SupportEmail string          `json:"support_email"`
	Fee          feeView         `json:"fee"`
	Styles       []catalog.Style `json:"styles"`
	Policies     []string        `json:"policies"`
	Checkout     CheckoutInfo    `json:"checkout"`
}

// Catalog lists the styles, the fee and what the checkout widget needs.
func (a *App) Catalog(w http.ResponseWriter, r *http.Request) {
	c := a.Studio.Catalog()
	a.json(w, http.StatusOK, catalogView{
		Studio:       c.Studio,
		SupportEmail: c.SupportEmail,
		Fee: feeView{
			Amount:   catalog.FeeAmount,
			Currency: catalog.FeeCurrency,
			Display:  catalog.DisplayFee(),
		},
		Styles:   c.Styles,
		Policies: c.PolicyNames(),
		Checkout: a.Checkout,
	})
}

// Policy returns one of the static policy texts.
func (a *App) Policy(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	text, ok := a.Studio.Catalog().Policy(name)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "unknown policy")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"name": name, "text": text})
}
