package adapter

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"paymenthub/internal/bus"
	"paymenthub/internal/cipher"
	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/envelope"
	"paymenthub/internal/refcode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func switchKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	return testKey
}

func channel(t *testing.T) *cipher.Channel {
	t.Helper()
	key, err := cipher.NewKey()
	require.NoError(t, err)
	ch, err := cipher.NewChannel(key)
	require.NoError(t, err)
	return ch
}

type capture struct {
	mu   sync.Mutex
	msgs []bus.Message
	addr []string
}

func (c *capture) Publish(_ context.Context, address string, msg bus.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr = append(c.addr, address)
	c.msgs = append(c.msgs, msg)
	return nil
}

func fastRetry(attempts int) Retry {
	return Retry{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Sleep: noSleep}
}

// switchServer answers with the given status (and an approval when 200),
// counting calls.
func switchServer(t *testing.T, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NotEmpty(t, r.Header.Get(envelope.HeaderCorrelationID))
		assert.NotEmpty(t, r.Header.Get(envelope.HeaderRequestID))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		var sealed cipher.SealedRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&sealed)) {
			return
		}
		opened, err := cipher.Open(&sealed, switchKey(t))
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "TRANSACTION_API", opened.APIID)
		_ = json.NewEncoder(w).Encode(envelope.SwitchResponse{
			ResponseCode: "00", ResponseMessage: "Transaction Successful",
			TransactionID: "SARV-1", RRN: "RRN1", ApprovalCode: "APP1", Balance: "50000.00",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sarvatra(t *testing.T, url string, retry Retry, timeout time.Duration) *Sarvatra {
	t.Helper()
	sealer, err := cipher.NewSealer(&switchKey(t).PublicKey, "TRANSACTION_API")
	require.NoError(t, err)
	return NewSarvatra(sealer, NewSwitchClient(url, timeout, retry, nil), nil)
}

func TestSwitchClientTransientExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := switchServer(t, http.StatusServiceUnavailable, &calls)

	c := NewSwitchClient(srv.URL, time.Second, fastRetry(3), nil)
	_, err := c.Send(context.Background(), "TXN-1", &cipher.SealedRequest{})
	assert.True(t, IsTransient(err))
	assert.EqualValues(t, 3, calls.Load())
}

func TestSwitchClientPermanentIsNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusInternalServerError} {
		var calls atomic.Int32
		srv := switchServer(t, status, &calls)

		c := NewSwitchClient(srv.URL, time.Second, fastRetry(3), nil)
		_, err := c.Send(context.Background(), "TXN-1", &cipher.SealedRequest{})

		var pe *PermanentError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, status, pe.StatusCode)
		assert.EqualValues(t, 1, calls.Load())
	}
}

func TestSwitchClientConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	attempts := 0
	retry := fastRetry(3)
	retry.Sleep = func(context.Context, time.Duration) error {
		attempts++
		return nil
	}
	c := NewSwitchClient(url, time.Second, retry, nil)
	_, err := c.Send(context.Background(), "TXN-1", &cipher.SealedRequest{})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, attempts, "two waits between three attempts")
}

func TestSwitchClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	c := NewSwitchClient(srv.URL, 50*time.Millisecond, fastRetry(3), nil)
	_, err := c.Send(context.Background(), "TXN-1", &cipher.SealedRequest{})
	assert.ErrorIs(t, err, ErrSwitchTimeout)
}

func TestSarvatraApproved(t *testing.T) {
	var calls atomic.Int32
	srv := switchServer(t, http.StatusOK, &calls)

	resp, err := sarvatra(t, srv.URL, fastRetry(3), time.Second).Process(context.Background(), "TXN-1",
		&envelope.TransactionRequest{TerminalID: "TERM001", TxnType: "WITHDRAWAL", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusSuccess, resp.Status)
	assert.Equal(t, "00", resp.ResponseCode)
	assert.Equal(t, "50000.00", resp.Balance)
	assert.Equal(t, "TXN-1", resp.CorrelationID)
}

func TestSarvatraTimeoutMapsTo91(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	resp, err := sarvatra(t, srv.URL, fastRetry(1), 30*time.Millisecond).Process(context.Background(), "TXN-2",
		&envelope.TransactionRequest{TerminalID: "TERM001", TxnType: "PURCHASE"})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusTimeout, resp.Status)
	assert.Equal(t, envelope.CodeTimeout, resp.ResponseCode)
}

func newService(t *testing.T, m *Manager) (*Service, *capture, *cipher.Channel, *cipher.Channel) {
	t.Helper()
	in, out := channel(t), channel(t)
	pub := &capture{}
	svc := NewService(Config{Name: "SARVATRA", ReplyTo: "payments.gateway.in", Inbound: in, Reply: out}, m, pub, nil)
	return svc, pub, in, out
}

func lastResponse(t *testing.T, pub *capture, out *cipher.Channel) *envelope.TransactionResponse {
	t.Helper()
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "payments.gateway.in", pub.addr[0])

	env, err := envelope.Decode(pub.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, pub.msgs[0].Key, env.CorrelationID)
	var resp envelope.TransactionResponse
	require.NoError(t, env.Open(out, &resp))
	return &resp
}

func TestServiceRetryExhaustionPublishesFailed(t *testing.T) {
	var calls atomic.Int32
	srv := switchServer(t, http.StatusServiceUnavailable, &calls)

	m := NewManager()
	m.SetDefault(sarvatra(t, srv.URL, fastRetry(3), time.Second))
	svc, pub, in, out := newService(t, m)

	b, err := envelope.Seal(in, "TXN-3", "ATM", "NPCI", envelope.TransactionRequest{TerminalID: "TERM001", TxnType: "WITHDRAWAL", Amount: 100})
	require.NoError(t, err)
	require.NoError(t, svc.Handle(context.Background(), bus.Message{Key: "TXN-3", Value: b}))

	resp := lastResponse(t, pub, out)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, transactions.StatusFailed, resp.Status)
	assert.Equal(t, envelope.CodeSystemError, resp.ResponseCode)
	assert.Contains(t, resp.ResponseMessage, "SARVATRA processing error")
	assert.Equal(t, "TXN-3", resp.CorrelationID)
}

func TestServiceAnswersUnreadableEnvelope(t *testing.T) {
	svc, pub, _, out := newService(t, NewManager())

	// Sealed with a key the adapter does not hold.
	b, err := envelope.Seal(channel(t), "TXN-4", "ATM", "NPCI", map[string]string{"x": "y"})
	require.NoError(t, err)
	require.NoError(t, svc.Handle(context.Background(), bus.Message{Key: "TXN-4", Value: b}))

	resp := lastResponse(t, pub, out)
	assert.Equal(t, transactions.StatusFailed, resp.Status)
	assert.Equal(t, "TXN-4", resp.CorrelationID)
}

func TestServiceAnswersMalformedEnvelopeByKey(t *testing.T) {
	svc, pub, _, out := newService(t, NewManager())
	require.NoError(t, svc.Handle(context.Background(), bus.Message{Key: "TXN-5", Value: []byte("junk")}))
	resp := lastResponse(t, pub, out)
	assert.Equal(t, "TXN-5", resp.CorrelationID)
	assert.Equal(t, transactions.StatusFailed, resp.Status)

	err := svc.Handle(context.Background(), bus.Message{Value: []byte("junk")})
	assert.ErrorIs(t, err, envelope.ErrMalformed)
}

func TestManagerDispatch(t *testing.T) {
	codes, err := refcode.New("cardnet")
	require.NoError(t, err)

	m := NewManager()
	m.RegisterProcessor("visa", NewCardnet(codes, nil))

	req := &envelope.TransactionRequest{TerminalID: "TERM9", TxnType: "PURCHASE", Amount: 10, CardNumber: "4111111111111111"}
	resp, err := m.Process(context.Background(), "VISA", "TXN-6", req)
	require.NoError(t, err)
	assert.Equal(t, transactions.StatusSuccess, resp.Status)
	assert.Equal(t, "00", resp.ResponseCode)
	assert.Len(t, resp.RRN, 12)

	_, err = m.Process(context.Background(), "AMEX", "TXN-7", req)
	assert.Error(t, err)
}

type failing struct{}

func (failing) Process(context.Context, string, *envelope.TransactionRequest) (*envelope.TransactionResponse, error) {
	return nil, errors.New("network down")
}

func TestServiceProcessorErrorBecomesFailed(t *testing.T) {
	m := NewManager()
	m.SetDefault(failing{})
	svc, pub, in, out := newService(t, m)

	b, err := envelope.Seal(in, "TXN-8", "ATM", "RUPAY", envelope.TransactionRequest{TerminalID: "T", TxnType: "PURCHASE"})
	require.NoError(t, err)
	require.NoError(t, svc.Handle(context.Background(), bus.Message{Key: "TXN-8", Value: b}))

	resp := lastResponse(t, pub, out)
	assert.Equal(t, transactions.StatusFailed, resp.Status)
	assert.Contains(t, resp.ResponseMessage, "network down")
}
