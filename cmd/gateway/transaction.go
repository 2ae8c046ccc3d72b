package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"paymenthub/internal/cipher"
	"paymenthub/internal/correlation"
	"paymenthub/internal/envelope"
	"paymenthub/internal/gateway"

	"github.com/go-chi/chi/v5"
)

const (
	headerSource      = "X-Source"
	headerDestination = "X-Destination"
)

// processTransactionHandler accepts one encrypted terminal request and
// answers with the encrypted response. Timeouts and downstream failures are
// answered with 200 and a TIMEOUT or FAILED status inside the payload.
func (app *application) processTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var payload envelope.ClientRequest
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	route := gateway.Route{
		ClientID:    getClientID(r),
		Source:      strings.TrimSpace(r.Header.Get(headerSource)),
		Destination: strings.TrimSpace(r.Header.Get(headerDestination)),
	}
	app.logger.Infow("transaction request", "clientId", route.ClientID, "source", route.Source, "destination", route.Destination)

	encrypted, err := app.gateway.Handle(r.Context(), payload.EncryptedPayload, route)
	if err != nil {
		switch {
		case errors.Is(err, cipher.ErrCrypto):
			app.badRequestResponse(w, r, errors.New("payload could not be decrypted"))
		case errors.Is(err, gateway.ErrInvalidRequest):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, correlation.ErrDuplicate):
			app.conflictResponse(w, r, err)
		case errors.Is(err, gateway.ErrPublish):
			app.serviceUnavailableResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, envelope.ClientResponse{EncryptedResponse: encrypted})
}

func (app *application) getTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "correlationID")

	rec, err := app.store.GetByCorrelationID(r.Context(), id)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if rec == nil || (rec.ClientID != "" && rec.ClientID != getClientID(r)) {
		app.notFoundResponse(w, r, errors.New("transaction not found: "+id))
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, rec); err != nil {
		app.internalServerError(w, r, err)
	}
}

type testDecryptPayload struct {
	EncryptedResponse string `json:"encryptedResponse" validate:"required,base64"`
}

// testEncryptHandler encrypts any JSON body with the client key.
func (app *application) testEncryptHandler(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := readJSON(w, r, &body); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	encrypted, err := app.client.Encrypt(body)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"plainJson":        string(body),
		"encryptedPayload": encrypted,
	})
}

func (app *application) testDecryptHandler(w http.ResponseWriter, r *http.Request) {
	var payload testDecryptPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	plain, err := app.client.Decrypt(payload.EncryptedResponse)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"decryptedResponse": string(plain)})
}
