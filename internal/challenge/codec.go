/**
 * @description
 * Challenge cookie codec.
 * Turns a Challenge record into an opaque, tamper-evident string suitable
 * for a cookie, and back. The encoded form is
 * `v1.base64url(payload).base64url(hmac-sha256(payload))`.
 *
 * There is no server-side challenge table: the signed cookie is the whole
 * state. A version bump invalidates old in-flight cookies, which simply
 * fail decode and force a re-challenge.
 *
 * @dependencies
 * - standard "crypto/hmac", "crypto/sha256", "crypto/rand"
 * - standard "encoding/base64", "encoding/json"
 */

package challenge

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Method identifies which signable message format a challenge was issued for.
type Method string

const (
	MethodSIWE    Method = "siwe"
	MethodMinimal Method = "minimal"
)

// Version is the current cookie format version tag.
const Version = "v1"

// TTL is how long an issued challenge stays valid.
const TTL = 10 * time.Minute

// Challenge is the client-held record proving a pending sign-in/link attempt.
// UserID is set when the challenge was issued to an already-authenticated
// user performing a link, and empty for a fresh sign-in. Message carries the
// exact SIWE text for the full-message method so verification never has to
// reconstruct it from client-supplied fields.
type Challenge struct {
	Version   string    `json:"v"`
	Method    Method    `json:"method"`
	Nonce     string    `json:"nonce"`
	Domain    string    `json:"domain"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Decode failure codes. Callers branch on these to decide whether to retry
// silently or ask the user to restart the flow, so they are never conflated.
const (
	CodeNoChallenge   = "NO_CHALLENGE"
	CodeInvalidCookie = "INVALID_COOKIE"
	CodeTampered      = "TAMPERED"
	CodeInvalidJSON   = "INVALID_JSON"
	CodeExpired       = "EXPIRED"
)

// DecodeError reports why a challenge cookie could not be decoded.
type DecodeError struct {
	Code string
	err  error
}

func (e *DecodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("challenge decode: %s: %v", e.Code, e.err)
	}
	return "challenge decode: " + e.Code
}

func (e *DecodeError) Unwrap() error { return e.err }

// Is matches any DecodeError with the same code.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Code == e.Code
}

func decodeErr(code string, err error) *DecodeError {
	return &DecodeError{Code: code, err: err}
}

// Codec encodes and decodes challenge cookies with a server-held secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec creates a Codec keyed by the given secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

// NewNonce returns a fresh 128-bit hex-encoded nonce.
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Encode serializes the challenge and signs it.
func (c *Codec) Encode(ch *Challenge) (string, error) {
	if ch.Version == "" {
		ch.Version = Version
	}
	payload, err := json.Marshal(ch)
	if err != nil {
		return "", fmt.Errorf("encode challenge: %w", err)
	}
	mac := c.mac(payload)
	return ch.Version + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac), nil
}

// Decode verifies and parses an encoded challenge.
// An empty raw value yields NO_CHALLENGE; any structural problem yields
// INVALID_COOKIE; a MAC mismatch yields TAMPERED; unparseable payload yields
// INVALID_JSON; a past expiry yields EXPIRED.
func (c *Codec) Decode(raw string) (*Challenge, error) {
	if raw == "" {
		return nil, decodeErr(CodeNoChallenge, nil)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, decodeErr(CodeInvalidCookie, fmt.Errorf("expected 3 parts, got %d", len(parts)))
	}
	if parts[0] != Version {
		return nil, decodeErr(CodeInvalidCookie, fmt.Errorf("unknown version %q", parts[0]))
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, decodeErr(CodeInvalidCookie, err)
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, decodeErr(CodeInvalidCookie, err)
	}

	if !hmac.Equal(gotMAC, c.mac(payload)) {
		return nil, decodeErr(CodeTampered, nil)
	}

	var ch Challenge
	if err := json.Unmarshal(payload, &ch); err != nil {
		return nil, decodeErr(CodeInvalidJSON, err)
	}

	if c.now().After(ch.ExpiresAt) {
		return nil, decodeErr(CodeExpired, nil)
	}

	return &ch, nil
}

func (c *Codec) mac(payload []byte) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write(payload)
	return h.Sum(nil)
}
