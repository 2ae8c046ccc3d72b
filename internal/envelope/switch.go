package envelope

// SwitchResponse is the external switch's plain JSON answer to a sealed
// request.
type SwitchResponse struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
	TransactionID   string `json:"transactionId"`
	RRN             string `json:"rrn"`
	ApprovalCode    string `json:"approvalCode"`
	Balance         string `json:"balance"`
	EncryptedData   string `json:"encryptedData,omitempty"`
}

// Switch request headers.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)
