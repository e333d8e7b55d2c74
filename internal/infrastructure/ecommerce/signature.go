package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// hmacSHA256Hex returns the lowercase hex HMAC-SHA256 of data
func hmacSHA256Hex(secret string, data []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// verifyHexSignature compares signature against the HMAC of body in constant
// time. upper selects the hex case the platform sends.
func verifyHexSignature(secret string, body []byte, signature string, upper bool) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := hmacSHA256Hex(secret, body)
	if upper {
		expected = strings.ToUpper(expected)
	}
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// concatSorted joins params as key1value1key2value2... in key order,
// skipping the sign parameter itself.
func concatSorted(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, k := range keys {
		builder.WriteString(k)
		builder.WriteString(params[k])
	}
	return builder.String()
}

// SignTaobaoRequest computes the TOP gateway hmac-sha256 sign parameter
func SignTaobaoRequest(appSecret string, params map[string]string) string {
	return strings.ToUpper(hmacSHA256Hex(appSecret, []byte(concatSorted(params))))
}

// SignDouyinRequest computes the Douyin open API sign over
// app_key, method, param_json, timestamp and v, wrapped in the app secret.
func SignDouyinRequest(appKey, appSecret, method, paramJSON, timestamp, version string) string {
	payload := appSecret + concatSorted(map[string]string{
		"app_key":    appKey,
		"method":     method,
		"param_json": paramJSON,
		"timestamp":  timestamp,
		"v":          version,
	}) + appSecret
	return hmacSHA256Hex(appSecret, []byte(payload))
}

// SignWebhookBody produces the signature a platform would send for body.
// Taobao uses uppercase hex, Douyin lowercase.
func SignWebhookBody(secret string, body []byte, upper bool) string {
	sig := hmacSHA256Hex(secret, body)
	if upper {
		return strings.ToUpper(sig)
	}
	return sig
}
