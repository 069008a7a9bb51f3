/**
 * @description
 * Signable message builders.
 * Two deterministic pure functions: the full EIP-4361 style multi-field
 * text block and a minimal personal-message block. Both must produce
 * byte-identical output for identical inputs because signature
 * verification regenerates and compares these texts.
 */

package siwe

import (
	"fmt"
	"strings"
	"time"
)

// MessageParams are the inputs to the full-message builder.
type MessageParams struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime *time.Time
}

// BuildMessage emits the full sign-in message. Field order is fixed and
// every timestamp is RFC3339 UTC so repeated calls are byte-identical.
func BuildMessage(p MessageParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", p.Domain)
	b.WriteString(p.Address)
	b.WriteString("\n")

	if p.Statement != "" {
		b.WriteString("\n")
		b.WriteString(p.Statement)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "URI: %s\n", p.URI)
	fmt.Fprintf(&b, "Version: %s\n", p.Version)
	fmt.Fprintf(&b, "Chain ID: %d\n", p.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", p.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", p.IssuedAt.UTC().Format(time.RFC3339))
	if p.ExpirationTime != nil {
		fmt.Fprintf(&b, "\nExpiration Time: %s", p.ExpirationTime.UTC().Format(time.RFC3339))
	}

	return b.String()
}

// Intent distinguishes the wording of the minimal message.
type Intent string

const (
	IntentSignIn Intent = "sign-in"
	IntentLink   Intent = "link"
)

// BuildLinkMessage emits the minimal personal message. There is no parser
// for this format: verification re-derives the exact text from the stored
// challenge and only the recovered address is compared.
func BuildLinkMessage(appName, domain, userID, nonce string, issuedAt, expiresAt time.Time, intent Intent) string {
	var b strings.Builder

	if intent == IntentLink {
		fmt.Fprintf(&b, "Sign this message to link your wallet to your %s account.\n", appName)
	} else {
		fmt.Fprintf(&b, "Sign this message to sign in to %s.\n", appName)
	}
	if userID != "" {
		fmt.Fprintf(&b, "User: %s\n", userID)
	}
	fmt.Fprintf(&b, "Domain: %s\n", domain)
	fmt.Fprintf(&b, "Nonce: %s\n", nonce)
	fmt.Fprintf(&b, "Issued At: %s\n", issuedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Expires At: %s", expiresAt.UTC().Format(time.RFC3339))

	return b.String()
}
