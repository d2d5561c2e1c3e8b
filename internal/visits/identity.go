package visits

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// AddressPrefix marks identities derived from a network address rather
// than a visitor token.
const AddressPrefix = "addr:"

// Identity is the deduplication key of a visitor.
type Identity string

// IsAddress reports whether the identity fell back to the client address.
func (id Identity) IsAddress() bool {
	return strings.HasPrefix(string(id), AddressPrefix)
}

// ResolveIdentity picks the visitor token when there is one and otherwise
// falls back to a keyed digest of the client address. Raw addresses never
// leave this function. An empty result means neither was available.
func ResolveIdentity(token, clientIP string, key []byte) Identity {
	if token = strings.TrimSpace(token); token != "" {
		return Identity(token)
	}
	if clientIP = strings.TrimSpace(clientIP); clientIP != "" {
		return Identity(AddressPrefix + DigestAddress(clientIP, key))
	}
	return ""
}

// DigestAddress returns the hex blake2b-256 MAC of ip under key. Keys longer
// than 64 bytes are truncated.
func DigestAddress(ip string, key []byte) string {
	if len(key) > blake2b.Size {
		key = key[:blake2b.Size]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// Only reachable with an oversized key, which is truncated above.
		panic(err)
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil))
}
