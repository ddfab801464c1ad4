package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HMACAuth holds the credentials required for HMAC-authenticated requests
// against the Polymarket CLOB API.
type HMACAuth struct {
	Key        string // API key
	Secret     string // API secret, URL-safe base64 (padding optional)
	Passphrase string // API passphrase
}

// Headers returns the HTTP headers for an authenticated CLOB request.
// The signature is HMAC-SHA256(secret, timestamp+method+path+body) over a
// millisecond timestamp, encoded as URL-safe base64.
//
// Returned header keys:
//   - X-API-KEY
//   - X-API-TIMESTAMP
//   - X-API-PASSPHRASE
//   - X-API-SIGNATURE
func (h *HMACAuth) Headers(method, path, body string) map[string]string {
	return h.HeadersAt(method, path, body, time.Now().UnixMilli())
}

// HeadersAt is like Headers but lets the caller supply the millisecond
// timestamp (useful for deterministic testing).
func (h *HMACAuth) HeadersAt(method, path, body string, millis int64) map[string]string {
	ts := strconv.FormatInt(millis, 10)

	message := ts + method + path + body
	sig := hmacSHA256Base64(h.secretBytes(), message)

	return map[string]string{
		"X-API-KEY":        h.Key,
		"X-API-TIMESTAMP":  ts,
		"X-API-PASSPHRASE": h.Passphrase,
		"X-API-SIGNATURE":  sig,
	}
}

// secretBytes decodes the URL-safe base64 secret, restoring stripped padding
// first. If decoding fails the raw bytes are used so the caller gets an
// obviously-wrong signature rather than a panic.
func (h *HMACAuth) secretBytes() []byte {
	s := h.Secret
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	decoded, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return []byte(h.Secret)
	}
	return decoded
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a URL-safe base64-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
