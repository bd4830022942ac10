package main

import (
	"net/http"
)

func (app *application) adminOverviewHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := app.store.Dashboard.GetOverview(r.Context())
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, overview); err != nil {
		app.internalServerError(w, r, err)
	}
}
