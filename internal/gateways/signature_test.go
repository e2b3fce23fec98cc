package gateways

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"txnId":"GRP1","status":"SUCCESS"}`)
	sig := Sign("whsec", body)

	cases := []struct {
		name   string
		secret string
		header string
		body   []byte
		want   bool
	}{
		{name: "valid", secret: "whsec", header: sig, body: body, want: true},
		{name: "prefixed", secret: "whsec", header: "sha256=" + sig, body: body, want: true},
		{name: "tampered body", secret: "whsec", header: sig, body: []byte(`{"txnId":"GRP1","status":"FAILED"}`), want: false},
		{name: "wrong secret", secret: "other", header: sig, body: body, want: false},
		{name: "missing header", secret: "whsec", header: "", body: body, want: false},
		{name: "not hex", secret: "whsec", header: "zz", body: body, want: false},
		{name: "no secret", secret: "", header: "", body: body, want: false},
		{name: "no secret with empty key signature", secret: "", header: Sign("", body), body: body, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, VerifySignature(tc.secret, tc.body, tc.header))
		})
	}
}
