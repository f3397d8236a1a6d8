package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"hash"
	"strings"

	"github.com/localbiz/bizhub/app/models"
)

// VerifySignature checks a webhook signature for the given gateway slug. It
// is pure over its inputs and returns false for unknown gateways.
func VerifySignature(slug string, body []byte, signature, secret string) bool {
	switch slug {
	case models.GatewayPaystack:
		return verifyHexHMAC(body, signature, secret, sha512.New)
	case models.GatewayFlutterwave:
		canonical, ok := canonicalJSON(body)
		if !ok {
			return false
		}
		return verifyHexHMAC(canonical, signature, secret, sha256.New)
	case models.GatewayMidtrans:
		return verifyMidtransSignature(body, secret)
	default:
		return false
	}
}

func verifyHexHMAC(payload []byte, signatureHeader, secretKey string, hashFunc func() hash.Hash) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(secretKey)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(hashFunc, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// canonicalJSON strips insignificant whitespace. Key order and string escapes
// are kept as sent, HTML characters are not escaped.
func canonicalJSON(body []byte) ([]byte, bool) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// verifyMidtransSignature checks signature_key = SHA512(order_id + status_code + gross_amount + server_key).
func verifyMidtransSignature(body []byte, serverKey string) bool {
	key := strings.TrimSpace(serverKey)
	if key == "" {
		return false
	}
	var n midtransNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	if want == "" {
		return false
	}
	return constantTimeEqual(want, midtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, key))
}

func midtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
