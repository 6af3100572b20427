package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := `{"notification_id":"n1","owner":"discord/u1","message":"discord/u2 deleted abc.ink."}`

	signature := svc.Sign("bridge-secret", payload)

	assert.Regexp(t, `^v1=[0-9a-f]{64}$`, signature)
	assert.True(t, svc.Verify("bridge-secret", payload, signature))
	assert.Equal(t, signature, svc.Sign("bridge-secret", payload))
}

func TestHMACSignatureService_Verify_Rejects(t *testing.T) {
	svc := NewHMACSignatureService()
	good := svc.Sign("key", "payload")

	tests := []struct {
		name      string
		key       string
		payload   string
		signature string
	}{
		{"wrong key", "other", "payload", good},
		{"tampered payload", "key", "payload!", good},
		{"missing scheme", "key", "payload", strings.TrimPrefix(good, "v1=")},
		{"unknown scheme", "key", "payload", "v2=" + strings.TrimPrefix(good, "v1=")},
		{"bad hex", "key", "payload", "v1=zz"},
		{"empty", "key", "payload", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.key, tt.payload, tt.signature))
		})
	}
}
