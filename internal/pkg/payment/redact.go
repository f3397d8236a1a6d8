package payment

import (
	"encoding/json"
	"fmt"
	"strings"
)

const redacted = "[redacted]"

var sensitiveKeyParts = []string{
	"email", "phone", "card", "authorization", "account_number",
	"first_name", "last_name", "fullname", "full_name", "bin", "last4",
	"cvv", "pan", "signature", "address", "ip",
}

// RedactPayload returns a JSON rendering of body with personal and card data
// replaced. Non-JSON bodies are summarized, never echoed.
func RedactPayload(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Sprintf("[unparseable payload, %d bytes]", len(body))
	}
	out, err := json.Marshal(redactValue(v))
	if err != nil {
		return fmt.Sprintf("[unencodable payload, %d bytes]", len(body))
	}
	return string(out)
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if isSensitiveKey(k) {
				t[k] = redacted
				continue
			}
			t[k] = redactValue(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = redactValue(child)
		}
		return t
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if k == part || strings.Contains(k, part) && len(part) > 3 {
			return true
		}
	}
	return false
}
