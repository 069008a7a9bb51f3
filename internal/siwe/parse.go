package siwe

import "strings"

// ParsedMessage holds the fields extracted from a client-supplied sign-in
// message. Absent fields are empty strings; timestamps stay unparsed text
// because verification only compares them or checks them against the clock.
type ParsedMessage struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        string
	Nonce          string
	IssuedAt       string
	ExpirationTime string
}

const signInSuffix = " wants you to sign in with your Ethereum account:"

// ParseMessage extracts fields from a full sign-in message via per-line
// matching. It tolerates any subset of fields being absent and never
// panics on malformed input.
func ParseMessage(text string) ParsedMessage {
	var p ParsedMessage

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		switch {
		case strings.HasSuffix(line, signInSuffix):
			p.Domain = strings.TrimSuffix(line, signInSuffix)
			if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "0x") {
				p.Address = strings.TrimSpace(lines[i+1])
			}
		case strings.HasPrefix(line, "URI: "):
			p.URI = strings.TrimPrefix(line, "URI: ")
		case strings.HasPrefix(line, "Version: "):
			p.Version = strings.TrimPrefix(line, "Version: ")
		case strings.HasPrefix(line, "Chain ID: "):
			p.ChainID = strings.TrimPrefix(line, "Chain ID: ")
		case strings.HasPrefix(line, "Nonce: "):
			p.Nonce = strings.TrimPrefix(line, "Nonce: ")
		case strings.HasPrefix(line, "Issued At: "):
			p.IssuedAt = strings.TrimPrefix(line, "Issued At: ")
		case strings.HasPrefix(line, "Expiration Time: "):
			p.ExpirationTime = strings.TrimPrefix(line, "Expiration Time: ")
		}
	}

	// The statement, when present, is the free-text block between the
	// address line and the URI field.
	p.Statement = extractStatement(lines)

	return p
}

func extractStatement(lines []string) string {
	start := -1
	for i, line := range lines {
		if strings.HasSuffix(line, signInSuffix) {
			start = i + 2 // skip the address line
			break
		}
	}
	if start < 0 {
		return ""
	}

	var collected []string
	for i := start; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "URI: ") {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		collected = append(collected, line)
	}
	return strings.Join(collected, "\n")
}
