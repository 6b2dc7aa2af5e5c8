package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignHMAC returns the lowercase hex HMAC-SHA256 of payload keyed by secret.
func SignHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a hex signature in constant time. Empty secrets or
// signatures never verify.
func VerifyHMAC(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}

// PaymentSignaturePayload is the message the gateway signs when a checkout
// completes: "<gateway order id>|<payment id>".
func PaymentSignaturePayload(gatewayOrderID, paymentID string) []byte {
	return []byte(gatewayOrderID + "|" + paymentID)
}
