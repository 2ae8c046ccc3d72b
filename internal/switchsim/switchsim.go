// Package switchsim is a stand-in for the external domestic switch. It
// opens hybrid envelopes with the switch private key and approves them, so
// the adapter can be exercised without the real network.
package switchsim

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"paymenthub/internal/cipher"
	"paymenthub/internal/envelope"
	"paymenthub/internal/refcode"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	CodeInsufficientFunds = "51"
	CodeFormatError       = "30"
)

type Options struct {
	// Delay is slept before answering.
	Delay time.Duration
	// DeclineAbove declines amounts greater than this with code 51. Zero
	// disables the rule.
	DeclineAbove float64
	Balance      string
}

type Switch struct {
	priv   *rsa.PrivateKey
	codes  *refcode.Generator
	opts   Options
	logger *zap.SugaredLogger
}

func New(priv *rsa.PrivateKey, codes *refcode.Generator, opts Options, logger *zap.SugaredLogger) *Switch {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if opts.Balance == "" {
		opts.Balance = "50000.00"
	}
	return &Switch{priv: priv, codes: codes, opts: opts, logger: logger}
}

func (s *Switch) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/transaction/process", s.process)
	return r
}

func (s *Switch) process(w http.ResponseWriter, r *http.Request) {
	correlationID := r.Header.Get(envelope.HeaderCorrelationID)

	var sealed cipher.SealedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&sealed); err != nil {
		s.reject(w, correlationID, fmt.Errorf("decode body: %w", err))
		return
	}
	opened, err := cipher.Open(&sealed, s.priv)
	if err != nil {
		s.reject(w, correlationID, err)
		return
	}
	var req envelope.TransactionRequest
	if err := json.Unmarshal(opened.Payload, &req); err != nil {
		s.reject(w, correlationID, fmt.Errorf("decode payload: %w", err))
		return
	}

	s.logger.Infow("switch request",
		"correlationId", correlationID,
		"apiId", opened.APIID,
		"timestamp", opened.Timestamp,
		"terminalId", req.TerminalID,
		"txnType", req.TxnType,
		"amount", req.Amount,
	)

	if s.opts.Delay > 0 {
		select {
		case <-time.After(s.opts.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if s.opts.DeclineAbove > 0 && req.Amount > s.opts.DeclineAbove {
		writeJSON(w, http.StatusOK, envelope.SwitchResponse{
			ResponseCode:    CodeInsufficientFunds,
			ResponseMessage: "Insufficient funds",
		})
		return
	}

	codes, err := s.codes.Next()
	if err != nil {
		s.logger.Errorw("reference code generation failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, envelope.SwitchResponse{
		ResponseCode:    envelope.CodeApproved,
		ResponseMessage: "Transaction Successful",
		TransactionID:   fmt.Sprintf("SARV-%d", time.Now().UnixMilli()),
		RRN:             codes.RRN,
		ApprovalCode:    codes.ApprovalCode,
		Balance:         s.opts.Balance,
	})
}

func (s *Switch) reject(w http.ResponseWriter, correlationID string, err error) {
	s.logger.Warnw("rejecting switch request", "correlationId", correlationID, "err", err)
	writeJSON(w, http.StatusBadRequest, envelope.SwitchResponse{
		ResponseCode:    CodeFormatError,
		ResponseMessage: "Format error",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
