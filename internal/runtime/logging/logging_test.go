package logging

import "testing"

func TestMaskedReplacesCredentialValues(t *testing.T) {
	fields := LogFields{
		"host":               "broker-1",
		"password":           "guest",
		"truststorePassword": "changeit",
		"AWS_SECRET":         "wJalr",
		"Authorization":      "Bearer abc",
	}

	masked := fields.Masked()
	for _, key := range []string{"password", "truststorePassword", "AWS_SECRET", "Authorization"} {
		if masked[key] != maskedValue {
			t.Errorf("expected %s to be masked, got %v", key, masked[key])
		}
	}
	if masked["host"] != "broker-1" {
		t.Errorf("unexpected host %v", masked["host"])
	}
	if fields["password"] != "guest" {
		t.Fatal("Masked must not modify the receiver")
	}
}

func TestMaskedReturnsReceiverWhenClean(t *testing.T) {
	fields := LogFields{"envelope_id": "abc"}
	masked := fields.Masked()
	masked["extra"] = true
	if _, ok := fields["extra"]; !ok {
		t.Fatal("expected the same map back when nothing is masked")
	}
	if LogFields(nil).Masked() != nil {
		t.Fatal("expected nil for nil fields")
	}
}

func TestIsSensitiveKey(t *testing.T) {
	cases := map[string]bool{
		"password":       true,
		"keystore-pass":  false,
		"access_token":   true,
		"credentials":    true,
		"endpoints":      false,
		"correlation_id": false,
	}
	for key, want := range cases {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
