/**
 * @description
 * Ethereum address recovery for personal-message signatures.
 * Wraps go-ethereum's secp256k1 recovery behind the EIP-191 prefixed hash.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/crypto
 * - github.com/ethereum/go-ethereum/common
 */

package ethauth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature covers malformed hex, wrong length, and failed
// curve recovery.
var ErrInvalidSignature = errors.New("ethauth: invalid signature")

// HashPersonalMessage constructs the EIP-191 prefixed hash:
// keccak256("\x19Ethereum Signed Message:\n" + len(msg) + msg)
func HashPersonalMessage(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	return crypto.Keccak256([]byte(prefix), msg)
}

// RecoverAddress extracts the signer address from a hex-encoded personal
// signature over msg. The signature must be 65 bytes (R || S || V), with V
// in {0,1} or {27,28}.
func RecoverAddress(msg string, signature string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	// Wallets emit V as 27/28; ecrecover expects 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	hash := HashPersonalMessage([]byte(msg))
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// IsValidAddress reports whether s is a well-formed 20-byte hex address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Normalize lowercases and trims an address for storage and comparison.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
