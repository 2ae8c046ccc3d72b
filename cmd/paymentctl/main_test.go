package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"paymenthub/internal/auth"
	"paymenthub/internal/cipher"
	"paymenthub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := run(t, "", "aeskey")
	require.NoError(t, err)
	key = strings.TrimSpace(key)

	out, err := run(t, "", "encrypt", "--key", key, `{"terminalId":"TERM001","amount":100,"type":"WITHDRAWAL"}`)
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.NotEmpty(t, body["encryptedPayload"])

	plain, err := run(t, body["encryptedPayload"]+"\n", "decrypt", "-k", key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"terminalId":"TERM001","amount":100,"type":"WITHDRAWAL"}`, plain)
}

func TestEncryptRejectsBadInput(t *testing.T) {
	t.Setenv("CLIENT_AES_KEY", "")
	_, err := run(t, "", "encrypt", `{}`)
	assert.ErrorContains(t, err, "no key")

	key, err := run(t, "", "aeskey")
	require.NoError(t, err)
	_, err = run(t, "", "encrypt", "--key", strings.TrimSpace(key), "not json")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestKeygenProducesUsableKeys(t *testing.T) {
	out, err := run(t, "", "keygen", "--bits", "1024")
	require.NoError(t, err)

	vals := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		k, v, ok := strings.Cut(line, "=")
		require.True(t, ok, line)
		vals[k] = v
	}
	pub, err := cipher.ParsePublicKey(vals["SWITCH_PUBLIC_KEY"])
	require.NoError(t, err)
	priv, err := cipher.ParsePrivateKey(vals["SWITCH_PRIVATE_KEY"])
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestHashSecretFeedsCredentials(t *testing.T) {
	out, err := run(t, "", "hash-secret", "atm-01", "s3cret")
	require.NoError(t, err)

	creds := auth.NewCredentials(config.ParseCredentials(strings.TrimSpace(out)))
	assert.NoError(t, creds.Verify("atm-01", "s3cret"))
	assert.Error(t, creds.Verify("atm-01", "wrong"))
}
