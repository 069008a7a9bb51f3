package handlers

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenfolio-project/backend/internal/api/middleware"
	authpkg "github.com/tokenfolio-project/backend/internal/auth"
	"github.com/tokenfolio-project/backend/internal/challenge"
	"github.com/tokenfolio-project/backend/internal/config"
	"github.com/tokenfolio-project/backend/internal/ethauth"
	"github.com/tokenfolio-project/backend/internal/services"
	"github.com/tokenfolio-project/backend/internal/store/storetest"
)

type walletFixture struct {
	app    *fiber.App
	mem    *storetest.Memory
	issuer *authpkg.TokenIssuer
	codec  *challenge.Codec
}

func newWalletFixture(t *testing.T) *walletFixture {
	t.Helper()

	issuer := authpkg.NewTokenIssuer([]byte("session-secret"), []byte("store-secret"), time.Hour, 5*time.Minute)
	cfg := &config.Config{Auth: config.AuthConfig{GoogleJWKSURL: ""}}
	require.NoError(t, middleware.InitAuthMiddleware(cfg, issuer))

	mem := storetest.NewMemory()
	codec := challenge.NewCodec([]byte("challenge-secret"))
	linkService := services.NewWalletLinkService(mem, codec, config.WalletConfig{
		AppName:   "Tokenfolio",
		Statement: "Link this wallet to your Tokenfolio account.",
		URI:       "https://app.example",
		ChainID:   1,
	})

	handler := NewWalletHandler(linkService, issuer, "test")

	app := fiber.New()
	v1 := app.Group("/api/v1")
	wallet := v1.Group("/wallet")
	wallet.Post("/challenge", middleware.OptionalAuth(), handler.Challenge)
	wallet.Post("/link", middleware.Protected(), handler.Link)
	wallet.Post("/unlink", middleware.Protected(), handler.Unlink)
	wallet.Get("/check", middleware.Protected(), handler.Check)
	v1.Post("/auth/wallet/login", handler.Login)

	return &walletFixture{app: app, mem: mem, issuer: issuer, codec: codec}
}

func (f *walletFixture) sessionToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := f.issuer.MintSessionToken(userID, "")
	require.NoError(t, err)
	return token
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func challengeCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == ChallengeCookieName {
			return c
		}
	}
	t.Fatal("challenge cookie not set")
	return nil
}

func signMessage(t *testing.T, key *ecdsa.PrivateKey, msg string) string {
	t.Helper()
	sig, err := crypto.Sign(ethauth.HashPersonalMessage([]byte(msg)), key)
	require.NoError(t, err)
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig)
}

// issueChallenge drives POST /wallet/challenge and returns the cookie plus
// the message to sign.
func (f *walletFixture) issueChallenge(t *testing.T, bearer, method, address string) (*http.Cookie, string) {
	t.Helper()
	req := jsonRequest(t, "POST", "/api/v1/wallet/challenge", map[string]string{
		"method":  method,
		"address": address,
	})
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	cookie := challengeCookie(t, resp)
	assert.True(t, cookie.HttpOnly)

	body := parseJSON(t, resp)
	message, _ := body["message"].(string)
	require.NotEmpty(t, message)
	return cookie, message
}

func TestWalletLinkFlow(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	_, err = f.mem.Ensure(t.Context(), "user-1", "u1@example.com")
	require.NoError(t, err)

	token := f.sessionToken(t, "user-1")
	cookie, message := f.issueChallenge(t, token, "minimal", "")
	assert.Contains(t, message, "User: user-1")

	req := jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{
		"method":    "minimal",
		"signature": signMessage(t, key, message),
	})
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(cookie)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The challenge is spent: the response clears the cookie.
	cleared := challengeCookie(t, resp)
	assert.Empty(t, cleared.Value)

	body := parseJSON(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, strings.ToLower(addr), body["wallet_address"])

	checkReq := httptest.NewRequest("GET", "/api/v1/wallet/check", nil)
	checkReq.Header.Set("Authorization", "Bearer "+token)
	checkResp, err := f.app.Test(checkReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, checkResp.StatusCode)

	checkBody := parseJSON(t, checkResp)
	assert.Equal(t, true, checkBody["is_linked"])
	assert.Equal(t, strings.ToLower(addr), checkBody["wallet_address"])
}

func TestWalletLinkTamperedCookie(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = f.mem.Ensure(t.Context(), "user-1", "")
	require.NoError(t, err)

	token := f.sessionToken(t, "user-1")
	cookie, message := f.issueChallenge(t, token, "minimal", "")
	cookie.Value += "x"

	req := jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{
		"method":    "minimal",
		"signature": signMessage(t, key, message),
	})
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(cookie)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := parseJSON(t, resp)
	assert.Equal(t, "CHALLENGE_INVALID", body["code"])
}

// The decode reason rides alongside CHALLENGE_INVALID so the client can
// tell an expired challenge (restart the flow) from a tampered one.
func TestWalletLinkDecodeReasons(t *testing.T) {
	f := newWalletFixture(t)

	_, err := f.mem.Ensure(t.Context(), "user-1", "")
	require.NoError(t, err)
	token := f.sessionToken(t, "user-1")

	// Decode fails before the signature gate, so a placeholder suffices.
	link := func(cookieValue string) map[string]interface{} {
		req := jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{
			"method":    "minimal",
			"signature": "0x00",
		})
		req.Header.Set("Authorization", "Bearer "+token)
		if cookieValue != "" {
			req.AddCookie(&http.Cookie{Name: ChallengeCookieName, Value: cookieValue})
		}
		resp, err := f.app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		body := parseJSON(t, resp)
		require.Equal(t, "CHALLENGE_INVALID", body["code"])
		return body
	}

	now := time.Now()
	expired, err := f.codec.Encode(&challenge.Challenge{
		Version:   challenge.Version,
		Method:    challenge.MethodMinimal,
		Nonce:     "a3f8c9d2e1b4a7f6c5d8e9b2a1f4c7d6",
		Domain:    "example.com",
		IssuedAt:  now.Add(-20 * time.Minute),
		ExpiresAt: now.Add(-10 * time.Minute),
		UserID:    "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", link(expired)["reason"])

	// Flip one character inside the MAC segment of a fresh cookie.
	cookie, _ := f.issueChallenge(t, token, "minimal", "")
	parts := strings.Split(cookie.Value, ".")
	require.Len(t, parts, 3)
	mac := []byte(parts[2])
	if mac[0] == 'A' {
		mac[0] = 'B'
	} else {
		mac[0] = 'A'
	}
	parts[2] = string(mac)
	assert.Equal(t, "TAMPERED", link(strings.Join(parts, "."))["reason"])

	assert.Equal(t, "NO_CHALLENGE", link("")["reason"])
}

func TestWalletLinkMissingCookie(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = f.mem.Ensure(t.Context(), "user-1", "")
	require.NoError(t, err)

	token := f.sessionToken(t, "user-1")
	_, message := f.issueChallenge(t, token, "minimal", "")

	req := jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{
		"method":    "minimal",
		"signature": signMessage(t, key, message),
	})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "CHALLENGE_INVALID", parseJSON(t, resp)["code"])
}

func TestWalletLinkConflict(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = f.mem.Ensure(t.Context(), "user-1", "")
	require.NoError(t, err)
	_, err = f.mem.Ensure(t.Context(), "user-2", "")
	require.NoError(t, err)

	link := func(userID string) *http.Response {
		token := f.sessionToken(t, userID)
		cookie, message := f.issueChallenge(t, token, "minimal", "")
		req := jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{
			"method":    "minimal",
			"signature": signMessage(t, key, message),
		})
		req.Header.Set("Authorization", "Bearer "+token)
		req.AddCookie(cookie)
		resp, err := f.app.Test(req)
		require.NoError(t, err)
		return resp
	}

	first := link("user-1")
	require.Equal(t, fiber.StatusOK, first.StatusCode)

	second := link("user-2")
	assert.Equal(t, fiber.StatusConflict, second.StatusCode)
	assert.Equal(t, "WALLET_TAKEN", parseJSON(t, second)["code"])
}

func TestWalletUnlink(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = f.mem.Ensure(t.Context(), "user-1", "")
	require.NoError(t, err)

	token := f.sessionToken(t, "user-1")
	cookie, message := f.issueChallenge(t, token, "minimal", "")

	linkReq := jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{
		"method":    "minimal",
		"signature": signMessage(t, key, message),
	})
	linkReq.Header.Set("Authorization", "Bearer "+token)
	linkReq.AddCookie(cookie)
	linkResp, err := f.app.Test(linkReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, linkResp.StatusCode)

	unlinkReq := jsonRequest(t, "POST", "/api/v1/wallet/unlink", map[string]string{})
	unlinkReq.Header.Set("Authorization", "Bearer "+token)
	unlinkResp, err := f.app.Test(unlinkReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, unlinkResp.StatusCode)

	checkReq := httptest.NewRequest("GET", "/api/v1/wallet/check", nil)
	checkReq.Header.Set("Authorization", "Bearer "+token)
	checkResp, err := f.app.Test(checkReq)
	require.NoError(t, err)
	assert.Equal(t, false, parseJSON(t, checkResp)["is_linked"])
}

func TestWalletLoginFlow(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())

	// Anonymous challenge: no bearer token.
	cookie, message := f.issueChallenge(t, "", "minimal", "")
	assert.NotContains(t, message, "User:")

	loginReq := jsonRequest(t, "POST", "/api/v1/auth/wallet/login", map[string]string{
		"signature": signMessage(t, key, message),
	})
	loginReq.AddCookie(cookie)
	loginResp, err := f.app.Test(loginReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, loginResp.StatusCode)

	body := parseJSON(t, loginResp)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	profile, _ := body["profile"].(map[string]interface{})
	require.NotNil(t, profile)
	assert.Equal(t, "wallet:"+addr, profile["user_id"])

	// The minted session token works as a bearer on protected routes.
	checkReq := httptest.NewRequest("GET", "/api/v1/wallet/check", nil)
	checkReq.Header.Set("Authorization", "Bearer "+token)
	checkResp, err := f.app.Test(checkReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, checkResp.StatusCode)

	checkBody := parseJSON(t, checkResp)
	assert.Equal(t, true, checkBody["is_linked"])
	assert.Equal(t, addr, checkBody["wallet_address"])
}

func TestWalletLoginRejectsLinkChallenge(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = f.mem.Ensure(t.Context(), "user-1", "")
	require.NoError(t, err)

	token := f.sessionToken(t, "user-1")
	cookie, message := f.issueChallenge(t, token, "minimal", "")

	loginReq := jsonRequest(t, "POST", "/api/v1/auth/wallet/login", map[string]string{
		"signature": signMessage(t, key, message),
	})
	loginReq.AddCookie(cookie)
	resp, err := f.app.Test(loginReq)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "CHALLENGE_MISMATCH", parseJSON(t, resp)["code"])
}

func TestWalletChallengeSIWE(t *testing.T) {
	f := newWalletFixture(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	_, err = f.mem.Ensure(t.Context(), "user-1", "")
	require.NoError(t, err)

	token := f.sessionToken(t, "user-1")

	req := jsonRequest(t, "POST", "/api/v1/wallet/challenge", map[string]string{
		"method":  "siwe",
		"address": addr,
	})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	cookie := challengeCookie(t, resp)
	body := parseJSON(t, resp)
	message, _ := body["message"].(string)
	require.NotEmpty(t, message)
	assert.Contains(t, message, addr)
	hints, _ := body["siwe"].(map[string]interface{})
	require.NotNil(t, hints)
	assert.Equal(t, "1", hints["version"])

	linkReq := jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{
		"method":       "siwe",
		"signature":    signMessage(t, key, message),
		"siwe_message": message,
	})
	linkReq.Header.Set("Authorization", "Bearer "+token)
	linkReq.AddCookie(cookie)
	linkResp, err := f.app.Test(linkReq)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, linkResp.StatusCode)
	assert.Equal(t, strings.ToLower(addr), parseJSON(t, linkResp)["wallet_address"])
}

func TestWalletChallengeMissingMethod(t *testing.T) {
	f := newWalletFixture(t)

	resp, err := f.app.Test(jsonRequest(t, "POST", "/api/v1/wallet/challenge", map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_METHOD", parseJSON(t, resp)["code"])
}

func TestWalletLinkRequiresAuth(t *testing.T) {
	f := newWalletFixture(t)

	resp, err := f.app.Test(jsonRequest(t, "POST", "/api/v1/wallet/link", map[string]string{"method": "minimal"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
