package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"paymenthub/internal/domain/transactions"
)

// Response codes shared by the gateway and the adapters.
const (
	CodeApproved    = "00"
	CodeTimeout     = "91" // issuer or switch unavailable, caller may retry
	CodeSystemError = "96"
)

// ClientRequest is the body a terminal posts.
type ClientRequest struct {
	EncryptedPayload string `json:"encryptedPayload" validate:"required,base64"`
}

// ClientResponse is the body returned to a terminal.
type ClientResponse struct {
	EncryptedResponse string `json:"encryptedResponse"`
}

// TransactionRequest is the decrypted terminal request. Fields that are not
// modelled yet survive in Extra and are forwarded downstream unchanged.
type TransactionRequest struct {
	CorrelationID string  `json:"correlationId,omitempty"` // terminal sequence/reference number
	TerminalID    string  `json:"terminalId" validate:"required,max=32"`
	TxnType       string  `json:"txnType" validate:"required,oneof=WITHDRAWAL PURCHASE BALANCE_INQUIRY"`
	Amount        float64 `json:"amount" validate:"gte=0"`
	CardNumber    string  `json:"cardNumber,omitempty" validate:"omitempty,numeric,min=12,max=19"`
	Timestamp     string  `json:"timestamp,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var requestFields = map[string]bool{
	"correlationId":  true,
	"sequenceNumber": true,
	"terminalId":     true,
	"txnType":        true,
	"type":           true,
	"amount":         true,
	"cardNumber":     true,
	"timestamp":      true,
}

type plainRequest TransactionRequest

// UnmarshalJSON accepts "type" for txnType and "sequenceNumber" for
// correlationId, and keeps unknown keys in Extra.
func (r *TransactionRequest) UnmarshalJSON(b []byte) error {
	var aux struct {
		plainRequest
		Type           string `json:"type"`
		SequenceNumber string `json:"sequenceNumber"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}

	*r = TransactionRequest(aux.plainRequest)
	if r.TxnType == "" {
		r.TxnType = aux.Type
	}
	if r.CorrelationID == "" {
		r.CorrelationID = aux.SequenceNumber
	}
	for k, v := range all {
		if requestFields[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return nil
}

func (r TransactionRequest) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(plainRequest(r))
	if err != nil || len(r.Extra) == 0 {
		return b, err
	}
	merged := make(map[string]json.RawMessage, len(r.Extra)+8)
	for k, v := range r.Extra {
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(b, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// TransactionResponse is the normalized answer every adapter publishes and
// the gateway encrypts for the terminal.
type TransactionResponse struct {
	CorrelationID   string              `json:"correlationId"`
	Status          transactions.Status `json:"status"`
	ResponseCode    string              `json:"responseCode"`
	ResponseMessage string              `json:"responseMessage"`
	TransactionID   string              `json:"transactionId"`
	RRN             string              `json:"rrn"`
	ApprovalCode    string              `json:"approvalCode"`
	Balance         string              `json:"balance"`
	Timestamp       int64               `json:"timestamp"`
}

// AuditString is the flattened form stored as the record's response payload.
func (r *TransactionResponse) AuditString() string {
	return fmt.Sprintf("Code:%s|Msg:%s|TxnId:%s|RRN:%s|Approval:%s|Balance:%s",
		r.ResponseCode, r.ResponseMessage, r.TransactionID, r.RRN, r.ApprovalCode, r.Balance)
}

// TimeoutResponse is what the gateway answers when no downstream response
// arrived in time.
func TimeoutResponse(correlationID string) *TransactionResponse {
	return &TransactionResponse{
		CorrelationID:   correlationID,
		Status:          transactions.StatusTimeout,
		ResponseCode:    CodeTimeout,
		ResponseMessage: "Transaction timeout - Please try again",
		Timestamp:       time.Now().UnixMilli(),
	}
}

// FailedResponse carries a diagnostic message back to the caller.
func FailedResponse(correlationID, code, message string) *TransactionResponse {
	if code == "" {
		code = CodeSystemError
	}
	return &TransactionResponse{
		CorrelationID:   correlationID,
		Status:          transactions.StatusFailed,
		ResponseCode:    code,
		ResponseMessage: message,
		Timestamp:       time.Now().UnixMilli(),
	}
}
