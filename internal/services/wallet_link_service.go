/**
 * @description
 * Wallet Link Service.
 * Orchestrates the full lifecycle of proving wallet ownership: challenge
 * issuance, signature verification with domain/nonce/method binding checks,
 * and committing a verified address to the caller's profile row under the
 * global uniqueness constraint.
 *
 * The ChallengeIssued state lives entirely in the signed cookie; there is
 * no server-side challenge row, so every request re-validates from scratch.
 *
 * @dependencies
 * - internal/challenge: cookie codec
 * - internal/siwe: message builders/parser
 * - internal/ethauth: address recovery
 * - internal/store: profile persistence
 */

package services

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tokenfolio-project/backend/internal/challenge"
	"github.com/tokenfolio-project/backend/internal/config"
	"github.com/tokenfolio-project/backend/internal/ethauth"
	"github.com/tokenfolio-project/backend/internal/models"
	"github.com/tokenfolio-project/backend/internal/siwe"
	"github.com/tokenfolio-project/backend/internal/store"
)

// SIWEVersion is the protocol version literal embedded in full messages.
const SIWEVersion = "1"

// WalletLinkService drives challenge issuance and verify+link.
type WalletLinkService struct {
	profiles store.ProfileStore
	codec    *challenge.Codec
	cfg      config.WalletConfig
	now      func() time.Time
}

// NewWalletLinkService creates a new WalletLinkService.
func NewWalletLinkService(profiles store.ProfileStore, codec *challenge.Codec, cfg config.WalletConfig) *WalletLinkService {
	return &WalletLinkService{
		profiles: profiles,
		codec:    codec,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SIWEHints let the client assemble its own copy of the full message; the
// copy must match byte-for-byte what will be re-verified.
type SIWEHints struct {
	Statement string `json:"statement"`
	URI       string `json:"uri"`
	Version   string `json:"version"`
	ChainID   int    `json:"chain_id"`
}

// ChallengeResult is returned to the client alongside the cookie.
type ChallengeResult struct {
	Method      challenge.Method
	Nonce       string
	Domain      string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Message     string
	SIWEHints   *SIWEHints
	CookieValue string
}

// IssueChallenge creates a fresh challenge for the given method.
// userID is empty for anonymous sign-in challenges. For the siwe method the
// client's address is required so the exact message text can be pre-computed
// and stored inside the challenge.
func (s *WalletLinkService) IssueChallenge(ctx context.Context, method challenge.Method, userID, host, address string) (*ChallengeResult, error) {
	domain := stripPort(host)
	nonce, err := challenge.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("issue challenge: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(challenge.TTL)

	ch := &challenge.Challenge{
		Version:   challenge.Version,
		Method:    method,
		Nonce:     nonce,
		Domain:    domain,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		UserID:    userID,
	}

	result := &ChallengeResult{
		Method:    method,
		Nonce:     nonce,
		Domain:    domain,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}

	switch method {
	case challenge.MethodSIWE:
		if !ethauth.IsValidAddress(address) {
			return nil, ErrInvalidWallet
		}
		exp := expiresAt
		message := siwe.BuildMessage(siwe.MessageParams{
			Domain:         domain,
			Address:        address,
			Statement:      s.cfg.Statement,
			URI:            s.cfg.URI,
			Version:        SIWEVersion,
			ChainID:        s.cfg.ChainID,
			Nonce:          nonce,
			IssuedAt:       now,
			ExpirationTime: &exp,
		})
		ch.Message = message
		result.Message = message
		result.SIWEHints = &SIWEHints{
			Statement: s.cfg.Statement,
			URI:       s.cfg.URI,
			Version:   SIWEVersion,
			ChainID:   s.cfg.ChainID,
		}
	case challenge.MethodMinimal:
		// Not stored: the minimal message is re-derived deterministically
		// from the challenge fields at verification time.
		result.Message = siwe.BuildLinkMessage(s.cfg.AppName, domain, userID, nonce, now, expiresAt, minimalIntent(userID))
	default:
		return nil, ErrInvalidMethod
	}

	cookie, err := s.codec.Encode(ch)
	if err != nil {
		return nil, fmt.Errorf("issue challenge: %w", err)
	}
	result.CookieValue = cookie

	return result, nil
}

// LinkInput carries everything the verify+link operation needs. The caller
// is already authenticated by the session layer; that precondition is not
// re-derived here.
type LinkInput struct {
	UserID      string
	Method      challenge.Method
	Signature   string
	SIWEMessage string
	Host        string
	CookieValue string

	// SessionWallet is the session-trusted address, set only when the
	// session itself was established by a wallet signature. TrustSession
	// lets the caller skip re-signing for that address.
	SessionWallet string
	TrustSession  bool
}

// LinkResult reports a successful link.
type LinkResult struct {
	WalletAddress string
	LinkedAt      time.Time
}

// VerifyLink runs the gate sequence and commits the verified address.
// Every gate aborts with a specific *Error; unexpected store failures come
// back as plain wrapped errors for the transport layer to turn into 500s.
func (s *WalletLinkService) VerifyLink(ctx context.Context, in LinkInput) (*LinkResult, error) {
	var address string

	if in.TrustSession && in.SessionWallet != "" {
		// The session carried this address because the user authenticated
		// as that wallet; it was cryptographically verified when the
		// session was established, so re-signing is skipped.
		address = in.SessionWallet
	} else {
		verified, err := s.verifySignedChallenge(in)
		if err != nil {
			return nil, err
		}
		address = verified
	}

	if !ethauth.IsValidAddress(address) {
		return nil, ErrInvalidWallet
	}
	normalized := ethauth.Normalize(address)

	// Fast-path existence check for a friendly conflict response. The
	// unique constraint on the write below remains the authoritative guard
	// against a concurrent link of the same address.
	existing, err := s.profiles.GetByWallet(ctx, normalized)
	if err == nil && existing.UserID != in.UserID {
		return nil, ErrWalletTaken
	} else if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("wallet lookup: %w", err)
	}

	if _, err := s.profiles.GetByUserID(ctx, in.UserID); err != nil {
		if err == store.ErrNotFound {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile lookup: %w", err)
	}

	linkedAt := s.now()
	if err := s.profiles.SetWallet(ctx, in.UserID, normalized, linkedAt); err != nil {
		switch err {
		case store.ErrNotFound:
			return nil, ErrProfileNotFound
		case store.ErrWalletTaken:
			return nil, ErrWalletTaken
		default:
			return nil, fmt.Errorf("wallet write: %w", err)
		}
	}

	return &LinkResult{WalletAddress: normalized, LinkedAt: linkedAt}, nil
}

// verifySignedChallenge runs gates 1-6: cookie decode, user/method/domain
// binding, and signature recovery for the chosen method.
func (s *WalletLinkService) verifySignedChallenge(in LinkInput) (string, error) {
	ch, err := s.codec.Decode(in.CookieValue)
	if err != nil {
		return "", ErrChallengeInvalid.With(err)
	}

	// An anonymous sign-in challenge is not valid for a link operation:
	// the challenge must have been bound to the caller at issuance.
	if ch.UserID == "" || ch.UserID != in.UserID {
		return "", ErrChallengeMismatch
	}

	if ch.Method != in.Method {
		return "", ErrChallengeMethodMismatch
	}

	if ch.Domain != stripPort(in.Host) {
		return "", ErrDomainMismatch
	}

	switch in.Method {
	case challenge.MethodMinimal:
		message := siwe.BuildLinkMessage(s.cfg.AppName, ch.Domain, ch.UserID, ch.Nonce, ch.IssuedAt, ch.ExpiresAt, siwe.IntentLink)
		recovered, err := ethauth.RecoverAddress(message, in.Signature)
		if err != nil {
			return "", ErrSignatureInvalid.With(err)
		}
		return recovered.Hex(), nil

	case challenge.MethodSIWE:
		parsed := siwe.ParseMessage(in.SIWEMessage)
		if parsed.Nonce != ch.Nonce {
			return "", ErrNonceMismatch
		}
		if parsed.Domain != ch.Domain {
			return "", ErrDomainMismatch
		}
		recovered, err := ethauth.RecoverAddress(in.SIWEMessage, in.Signature)
		if err != nil {
			return "", ErrSignatureInvalid.With(err)
		}
		// The address line in the text is the client's claim; it must be
		// the actual signer, or a party could sign a message and swap in a
		// different claimed address.
		if !strings.EqualFold(recovered.Hex(), parsed.Address) {
			return "", ErrAddressMismatch
		}
		if parsed.ExpirationTime != "" {
			// A garbled expiration must not slip past the staleness check.
			exp, perr := time.Parse(time.RFC3339, parsed.ExpirationTime)
			if perr != nil {
				return "", ErrChallengeExpired.With(perr)
			}
			if exp.Before(s.now()) {
				return "", ErrChallengeExpired
			}
		}
		return recovered.Hex(), nil

	default:
		return "", ErrInvalidMethod
	}
}

// LoginInput carries a wallet sign-in attempt. Only the minimal method is
// accepted and the challenge must be anonymous.
type LoginInput struct {
	Signature   string
	Host        string
	CookieValue string
}

// VerifyLogin proves wallet ownership for sign-in and returns the owning
// profile, creating a wallet-only profile just-in-time.
func (s *WalletLinkService) VerifyLogin(ctx context.Context, in LoginInput) (*models.Profile, error) {
	ch, err := s.codec.Decode(in.CookieValue)
	if err != nil {
		return nil, ErrChallengeInvalid.With(err)
	}

	// A challenge bound to an authenticated user is a link challenge, not
	// a sign-in challenge.
	if ch.UserID != "" {
		return nil, ErrChallengeMismatch
	}
	if ch.Method != challenge.MethodMinimal {
		return nil, ErrChallengeMethodMismatch
	}
	if ch.Domain != stripPort(in.Host) {
		return nil, ErrDomainMismatch
	}

	message := siwe.BuildLinkMessage(s.cfg.AppName, ch.Domain, "", ch.Nonce, ch.IssuedAt, ch.ExpiresAt, siwe.IntentSignIn)
	recovered, err := ethauth.RecoverAddress(message, in.Signature)
	if err != nil {
		return nil, ErrSignatureInvalid.With(err)
	}
	if !ethauth.IsValidAddress(recovered.Hex()) {
		return nil, ErrInvalidWallet
	}

	profile, err := s.profiles.EnsureWalletUser(ctx, ethauth.Normalize(recovered.Hex()))
	if err != nil {
		return nil, fmt.Errorf("ensure wallet profile: %w", err)
	}
	return profile, nil
}

// Unlink clears the wallet fields on the caller's own profile row.
func (s *WalletLinkService) Unlink(ctx context.Context, userID string) error {
	if err := s.profiles.ClearWallet(ctx, userID); err != nil {
		if err == store.ErrNotFound {
			return ErrProfileNotFound
		}
		return fmt.Errorf("wallet unlink: %w", err)
	}
	return nil
}

// LinkStatus is the read-only projection of the caller's link state.
type LinkStatus struct {
	IsLinked      bool
	WalletAddress string
	LinkedAt      *time.Time
}

// Check reports the current link status. An absent profile reads as "not
// linked" rather than erroring; this is a status probe, not a mutation.
func (s *WalletLinkService) Check(ctx context.Context, userID string) (*LinkStatus, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return &LinkStatus{}, nil
		}
		return nil, fmt.Errorf("link status: %w", err)
	}

	status := &LinkStatus{}
	if profile.WalletAddress != nil && *profile.WalletAddress != "" {
		status.IsLinked = true
		status.WalletAddress = *profile.WalletAddress
		status.LinkedAt = profile.WalletLinkedAt
	}
	return status, nil
}

func minimalIntent(userID string) siwe.Intent {
	if userID != "" {
		return siwe.IntentLink
	}
	return siwe.IntentSignIn
}

// stripPort reduces a request host to its bare hostname.
func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
