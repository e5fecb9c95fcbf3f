package crypto

import (
	"strings"
	"testing"
)

func TestHeadersAtSignature(t *testing.T) {
	auth := HMACAuth{
		Key:        "api-key-1",
		Secret:     "dGVzdC1zZWNyZXQtYnl0ZXM=", // "test-secret-bytes"
		Passphrase: "hunter2",
	}

	headers := auth.HeadersAt("POST", "/order", `{"size":"100"}`, 1700000000)
	if headers["POLY_API_KEY"] != "api-key-1" {
		t.Errorf("api key header = %q", headers["POLY_API_KEY"])
	}
	if headers["POLY_TIMESTAMP"] != "1700000000" {
		t.Errorf("timestamp header = %q", headers["POLY_TIMESTAMP"])
	}
	if headers["POLY_PASSPHRASE"] != "hunter2" {
		t.Errorf("passphrase header = %q", headers["POLY_PASSPHRASE"])
	}
	if got, want := headers["POLY_SIGNATURE"], "ht/u4TDvG2psy/S5XUPvhhFzfIXALtni9J3bqzTovNo="; got != want {
		t.Errorf("signature = %q, want %q", got, want)
	}

	empty := auth.HeadersAt("POST", "/order", "", 1700000000)
	if got, want := empty["POLY_SIGNATURE"], "J+r9NzY0QNb3a6QjAyBAw+wDHDkKBod1Llx67oVpOyM="; got != want {
		t.Errorf("empty-body signature = %q, want %q", got, want)
	}
}

func TestHeadersAtVariesWithInputs(t *testing.T) {
	auth := HMACAuth{Key: "k", Secret: "dGVzdC1zZWNyZXQtYnl0ZXM=", Passphrase: "p"}

	base := auth.HeadersAt("POST", "/order", "body", 1700000000)["POLY_SIGNATURE"]
	variants := []string{
		auth.HeadersAt("GET", "/order", "body", 1700000000)["POLY_SIGNATURE"],
		auth.HeadersAt("POST", "/orders", "body", 1700000000)["POLY_SIGNATURE"],
		auth.HeadersAt("POST", "/order", "body2", 1700000000)["POLY_SIGNATURE"],
		auth.HeadersAt("POST", "/order", "body", 1700000001)["POLY_SIGNATURE"],
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d produced the same signature", i)
		}
	}

	// Same inputs always sign the same way.
	if again := auth.HeadersAt("POST", "/order", "body", 1700000000)["POLY_SIGNATURE"]; again != base {
		t.Error("signature not deterministic")
	}
}

func TestStringRedactsCredentials(t *testing.T) {
	auth := HMACAuth{Key: "api-key-1", Secret: "dGVzdC1zZWNyZXQtYnl0ZXM=", Passphrase: "hunter2"}

	s := auth.String()
	if strings.Contains(s, "api-key-1") || strings.Contains(s, auth.Secret) || strings.Contains(s, "hunter2") {
		t.Errorf("credentials leaked: %s", s)
	}
	if !strings.Contains(s, "api-****") {
		t.Errorf("redacted prefix missing: %s", s)
	}
}
