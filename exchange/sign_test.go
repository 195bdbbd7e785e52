package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignKnownVector(t *testing.T) {
	s := NewSigner("my-secret")
	got := s.Sign(1700000000000, "GET", "/api/v1/positions", "")

	mac := hmac.New(sha256.New, []byte("my-secret"))
	mac.Write([]byte("1700000000000GET/api/v1/positions"))
	want := hex.EncodeToString(mac.Sum(nil))
	require.Equal(t, want, got)
	require.Len(t, got, 64)
}

func TestSignIncludesBodyAndQuery(t *testing.T) {
	s := NewSigner("secret")

	withBody := s.Sign(1, "POST", "/api/v1/order", `{"symbol":"BTC_USDC_PERP"}`)
	withoutBody := s.Sign(1, "POST", "/api/v1/order", "")
	require.NotEqual(t, withBody, withoutBody)

	withQuery := s.Sign(1, "GET", "/api/v1/order?orderId=1&symbol=X", "")
	withoutQuery := s.Sign(1, "GET", "/api/v1/order", "")
	require.NotEqual(t, withQuery, withoutQuery)
}

func TestSignDiffersByTimestamp(t *testing.T) {
	s := NewSigner("secret")
	require.NotEqual(t,
		s.Sign(1700000000000, "GET", "/api/v1/capital", ""),
		s.Sign(1700000000001, "GET", "/api/v1/capital", ""))
}
