package envelope

import (
	"encoding/json"
	"testing"

	"paymenthub/internal/cipher"
	"paymenthub/internal/domain/transactions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hopChannel(t *testing.T) *cipher.Channel {
	t.Helper()
	key, err := cipher.NewKey()
	require.NoError(t, err)
	ch, err := cipher.NewChannel(key)
	require.NoError(t, err)
	return ch
}

func TestEncodeDecode(t *testing.T) {
	e := New("TXN-1", "cGF5bG9hZA==", "ATM", "NPCI")
	b, err := Encode(e)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, e, got)
	assert.Positive(t, got.Timestamp)
}

func TestEncodeRequiresCorrelationID(t *testing.T) {
	_, err := Encode(New("", "x", "ATM", "NPCI"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Encode(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"payload":"x","destination":"VISA"}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestPeekDestination(t *testing.T) {
	dest, err := PeekDestination([]byte(`{"correlationId":"a","payload":"{\"destination\":\"VISA\"}","destination":"RUPAY"}`))
	require.NoError(t, err)
	assert.Equal(t, "RUPAY", dest)

	dest, err = PeekDestination([]byte(`{"correlationId":"a"}`))
	require.NoError(t, err)
	assert.Empty(t, dest)

	_, err = PeekDestination([]byte("nope"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSealOpen(t *testing.T) {
	ch := hopChannel(t)
	req := TransactionRequest{TerminalID: "TERM001", TxnType: "WITHDRAWAL", Amount: 100}

	b, err := Seal(ch, "TXN-7", "ATM", "NPCI", req)
	require.NoError(t, err)

	e, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "TXN-7", e.CorrelationID)
	assert.NotContains(t, e.Payload, "TERM001")

	var got TransactionRequest
	require.NoError(t, e.Open(ch, &got))
	assert.Equal(t, req.TerminalID, got.TerminalID)
	assert.Equal(t, req.Amount, got.Amount)

	// A different hop key cannot open it.
	var other TransactionRequest
	err = e.Open(hopChannel(t), &other)
	assert.ErrorIs(t, err, cipher.ErrCrypto)
}

func TestTransactionRequestAliasesAndExtra(t *testing.T) {
	raw := `{"sequenceNumber":"STAN-1","terminalId":"TERM001","type":"WITHDRAWAL","amount":100.00,"cardNumber":"4111111111111111","mcc":"6011","pinBlock":{"format":0}}`

	var req TransactionRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.Equal(t, "STAN-1", req.CorrelationID)
	assert.Equal(t, "WITHDRAWAL", req.TxnType)
	assert.Equal(t, 100.0, req.Amount)
	require.Len(t, req.Extra, 2)
	assert.JSONEq(t, `"6011"`, string(req.Extra["mcc"]))

	out, err := json.Marshal(req)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, "STAN-1", fields["correlationId"])
	assert.Equal(t, "WITHDRAWAL", fields["txnType"])
	assert.Equal(t, "6011", fields["mcc"])
	assert.Contains(t, fields, "pinBlock")
	assert.NotContains(t, fields, "type")
}

func TestTransactionRequestCanonicalNamesWin(t *testing.T) {
	var req TransactionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"correlationId":"A","sequenceNumber":"B","txnType":"PURCHASE","type":"WITHDRAWAL"}`), &req))
	assert.Equal(t, "A", req.CorrelationID)
	assert.Equal(t, "PURCHASE", req.TxnType)
	assert.Empty(t, req.Extra)
}

func TestResponses(t *testing.T) {
	to := TimeoutResponse("TXN-1")
	assert.Equal(t, transactions.StatusTimeout, to.Status)
	assert.Equal(t, CodeTimeout, to.ResponseCode)
	assert.Equal(t, "Transaction timeout - Please try again", to.ResponseMessage)

	f := FailedResponse("TXN-1", "", "switch unavailable")
	assert.Equal(t, transactions.StatusFailed, f.Status)
	assert.Equal(t, CodeSystemError, f.ResponseCode)

	ok := &TransactionResponse{ResponseCode: "00", ResponseMessage: "Approved", TransactionID: "T1", RRN: "R1", ApprovalCode: "A1", Balance: "50000.00"}
	assert.Equal(t, "Code:00|Msg:Approved|TxnId:T1|RRN:R1|Approval:A1|Balance:50000.00", ok.AuditString())
}
