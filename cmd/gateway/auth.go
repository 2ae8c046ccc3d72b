package main

import (
	"errors"
	"net/http"

	"paymenthub/internal/auth"
)

type CreateTokenPayload struct {
	ClientID     string `json:"clientId" validate:"required,max=64"`
	ClientSecret string `json:"clientSecret" validate:"required,max=72"`
}

type TokenResponse struct {
	SessionID string `json:"sessionId"`
	ExpiresIn int64  `json:"expiresIn"`
	TokenType string `json:"tokenType"`
}

func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	sess, err := app.sessions.Login(r.Context(), payload.ClientID, payload.ClientSecret)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("token issued", "clientId", payload.ClientID)
	writeJSON(w, http.StatusOK, TokenResponse{
		SessionID: sess.Token,
		ExpiresIn: int64(sess.ExpiresIn.Seconds()),
		TokenType: "Bearer",
	})
}

func (app *application) deleteTokenHandler(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	if err := app.sessions.Logout(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
