package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureScheme prefixes every webhook signature so the bridge can tell
// which algorithm produced it.
const SignatureScheme = "v1"

// HMACSignatureService signs notification webhook bodies with HMAC-SHA256.
// Signatures look like "v1=<hex>".
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	return SignatureScheme + "=" + hex.EncodeToString(digest(secretKey, payload))
}

// Verify reports whether signature was produced by Sign with the same key
// and payload. Unknown schemes and malformed hex never verify.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	scheme, encoded, ok := strings.Cut(signature, "=")
	if !ok || scheme != SignatureScheme {
		return false
	}
	got, err := hex.DecodeString(encoded)
	if err != nil {
		return false
	}
	return hmac.Equal(digest(secretKey, payload), got)
}

func digest(secretKey, payload string) []byte {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
