package challenge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChallenge(expiresIn time.Duration) *Challenge {
	now := time.Now().UTC().Truncate(time.Second)
	return &Challenge{
		Version:   Version,
		Method:    MethodSIWE,
		Nonce:     "a3f8c9d2e1b4a7f6c5d8e9b2a1f4c7d6",
		Domain:    "app.example",
		IssuedAt:  now,
		ExpiresAt: now.Add(expiresIn),
		UserID:    "user-1",
		Message:   "app.example wants you to sign in with your Ethereum account:\n0xabc",
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	ch := testChallenge(TTL)

	encoded, err := codec.Encode(ch)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, Version+"."))
	assert.Len(t, strings.Split(encoded, "."), 3)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, ch.Method, decoded.Method)
	assert.Equal(t, ch.Nonce, decoded.Nonce)
	assert.Equal(t, ch.Domain, decoded.Domain)
	assert.Equal(t, ch.UserID, decoded.UserID)
	assert.Equal(t, ch.Message, decoded.Message)
	assert.True(t, ch.IssuedAt.Equal(decoded.IssuedAt))
	assert.True(t, ch.ExpiresAt.Equal(decoded.ExpiresAt))
}

func TestCodecMissingCookie(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))

	_, err := codec.Decode("")
	requireDecodeCode(t, err, CodeNoChallenge)
}

func TestCodecMalformedCookie(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))

	for _, raw := range []string{
		"garbage",
		"one.two",
		"one.two.three.four",
		"v1.!!!not-base64!!!.AAAA",
		"v1.AAAA.!!!not-base64!!!",
	} {
		_, err := codec.Decode(raw)
		requireDecodeCode(t, err, CodeInvalidCookie)
	}
}

func TestCodecUnknownVersion(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	encoded, err := codec.Encode(testChallenge(TTL))
	require.NoError(t, err)

	parts := strings.Split(encoded, ".")
	_, err = codec.Decode("v9." + parts[1] + "." + parts[2])
	requireDecodeCode(t, err, CodeInvalidCookie)
}

func TestCodecTamperedMAC(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	encoded, err := codec.Encode(testChallenge(TTL))
	require.NoError(t, err)

	_, err = codec.Decode(flipLastSegmentChar(encoded))
	requireDecodeCode(t, err, CodeTampered)
}

func TestCodecTamperedPayload(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	encoded, err := codec.Encode(testChallenge(TTL))
	require.NoError(t, err)

	parts := strings.Split(encoded, ".")
	payload := []byte(parts[1])
	if payload[4] != 'A' {
		payload[4] = 'A'
	} else {
		payload[4] = 'B'
	}
	_, err = codec.Decode(parts[0] + "." + string(payload) + "." + parts[2])
	requireDecodeCode(t, err, CodeTampered)
}

func TestCodecWrongSecret(t *testing.T) {
	encoded, err := NewCodec([]byte("secret-a")).Encode(testChallenge(TTL))
	require.NoError(t, err)

	_, err = NewCodec([]byte("secret-b")).Decode(encoded)
	requireDecodeCode(t, err, CodeTampered)
}

func TestCodecExpired(t *testing.T) {
	codec := NewCodec([]byte("test-secret"))
	encoded, err := codec.Encode(testChallenge(-time.Minute))
	require.NoError(t, err)

	_, err = codec.Decode(encoded)
	requireDecodeCode(t, err, CodeExpired)
}

func TestNewNonceEntropy(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		nonce, err := NewNonce()
		require.NoError(t, err)
		assert.Len(t, nonce, 32) // 128 bits hex-encoded
		assert.False(t, seen[nonce], "nonce collision")
		seen[nonce] = true
	}
}

func requireDecodeCode(t *testing.T, err error, code string) {
	t.Helper()
	var dErr *DecodeError
	require.ErrorAs(t, err, &dErr, "expected DecodeError, got %v", err)
	assert.Equal(t, code, dErr.Code)
}

func flipLastSegmentChar(encoded string) string {
	i := strings.LastIndex(encoded, ".")
	mac := []byte(encoded[i+1:])
	if mac[0] != 'A' {
		mac[0] = 'A'
	} else {
		mac[0] = 'B'
	}
	return encoded[:i+1] + string(mac)
}
