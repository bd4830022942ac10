package main

import (
	"net/http"
	"strings"
)

type ChatPayload struct {
	Message string `json:"message" validate:"required,max=2000"`
}

func (app *application) chatHandler(w http.ResponseWriter, r *http.Request) {
	var payload ChatPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	payload.Message = strings.TrimSpace(payload.Message)

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reply, err := app.chatbot.Reply(r.Context(), payload.Message)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, reply); err != nil {
		app.internalServerError(w, r, err)
	}
}
