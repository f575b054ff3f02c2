package security

import "testing"

func TestValidateOutboundURLRejectsNonHTTPSchemes(t *testing.T) {
	for _, u := range []string{"file:///etc/passwd", "ftp://example.com/x", "gopher://example.com"} {
		if err := ValidateOutboundURL(u, OutboundURLOptions{AllowHTTP: true}); err == nil {
			t.Fatalf("expected %q to be rejected", u)
		}
	}
}

func TestValidateOutboundURLHTTPRequiresOptIn(t *testing.T) {
	if err := ValidateOutboundURL("http://example.com/", OutboundURLOptions{}); err == nil {
		t.Fatal("expected plain http to be rejected by default")
	}
	if err := ValidateOutboundURL("http://example.com/", OutboundURLOptions{AllowHTTP: true}); err != nil {
		t.Fatalf("expected plain http to be allowed with AllowHTTP: %v", err)
	}
}

func TestValidateOutboundURLRejectsLocalTargetsByDefault(t *testing.T) {
	for _, u := range []string{
		"https://localhost/admin",
		"https://metadata.local/",
		"https://127.0.0.1/",
		"https://10.0.0.8/",
		"https://[::1]/",
	} {
		if err := ValidateOutboundURL(u, OutboundURLOptions{}); err == nil {
			t.Fatalf("expected %q to be rejected", u)
		}
	}
}

func TestValidateOutboundURLAllowsLocalTargetsWhenEnabled(t *testing.T) {
	for _, u := range []string{"https://localhost:8888/", "https://127.0.0.1:8888/"} {
		if err := ValidateOutboundURL(u, OutboundURLOptions{AllowLocalNetworks: true}); err != nil {
			t.Fatalf("expected %q to be allowed with AllowLocalNetworks: %v", u, err)
		}
	}
}

func TestValidateOutboundURLRejectsZonedIPv6ByDefault(t *testing.T) {
	err := ValidateOutboundURL("https://[fe80::1%25eth0]/", OutboundURLOptions{})
	if err == nil {
		t.Fatal("expected zone-literal IPv6 host to be rejected")
	}
}
