package api

import (
	"net/http"

	"github.com/mohammed-shakir/rurair-map/internal/contact"
)

func (a *API) contact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, contact.Result{Message: contact.MsgMethod})
		return
	}
	form, err := contact.ParseForm(r)
	if err != nil {
		a.Log.WarnContext(r.Context(), "contact form unreadable", "err", err)
		writeJSON(w, http.StatusBadRequest, contact.Result{Message: contact.MsgRequired})
		return
	}
	res, status := a.Contact.Submit(r.Context(), form)
	writeJSON(w, status, res)
}
