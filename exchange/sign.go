package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signer produces request signatures for the exchange's authenticated REST
// API. The signature is hex-encoded HMAC-SHA256 over the exact concatenation
// timestamp + method + path + body, keyed by the API secret. The path must
// include the encoded query string when one is sent.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer from the raw API secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the signature for a single request. timestamp is milliseconds
// since epoch and must be the same value sent in the X-TIMESTAMP header;
// signatures expire server-side within a short skew window, so it is generated
// at send time, never cached.
func (s *Signer) Sign(timestamp int64, method, path, body string) string {
	message := fmt.Sprintf("%d%s%s%s", timestamp, method, path, body)
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
