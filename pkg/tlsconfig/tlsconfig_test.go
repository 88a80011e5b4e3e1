package tlsconfig

import (
	"crypto/tls"
	"testing"
)

func TestIsVersionDeprecated(t *testing.T) {
	if !IsVersionDeprecated(VersionTLS11) {
		t.Error("expected TLS 1.1 to be deprecated")
	}
	if IsVersionDeprecated(VersionTLS12) {
		t.Error("expected TLS 1.2 to not be deprecated")
	}
}

func TestGetVersionName(t *testing.T) {
	if GetVersionName(VersionTLS13) != "TLS 1.3" {
		t.Errorf("unexpected name: %s", GetVersionName(VersionTLS13))
	}
	if GetVersionName(0x9999) != "Unknown" {
		t.Errorf("expected Unknown for unrecognized version")
	}
}

func TestGetCipherSuiteName(t *testing.T) {
	if GetCipherSuiteName(tls.TLS_AES_128_GCM_SHA256) != "TLS_AES_128_GCM_SHA256" {
		t.Error("unexpected cipher suite name")
	}
	if GetCipherSuiteName(0xFFFF) != "Unknown" {
		t.Error("expected Unknown for unrecognized cipher suite")
	}
}

func TestApplyVersionProfile(t *testing.T) {
	cfg := &tls.Config{}
	ApplyVersionProfile(cfg, ProfileSecure)
	if cfg.MinVersion != VersionTLS12 || cfg.MaxVersion != VersionTLS13 {
		t.Fatalf("unexpected profile application: min=%x max=%x", cfg.MinVersion, cfg.MaxVersion)
	}
}

func TestApplyCipherSuitesTLS13HasNoExplicitSuites(t *testing.T) {
	cfg := &tls.Config{}
	ApplyCipherSuites(cfg, VersionTLS13)
	if cfg.CipherSuites != nil {
		t.Error("expected nil cipher suites when minimum version is TLS 1.3")
	}
}

func TestApplyCipherSuitesTLS12UsesSecureSet(t *testing.T) {
	cfg := &tls.Config{}
	ApplyCipherSuites(cfg, VersionTLS12)
	if len(cfg.CipherSuites) != len(CipherSuitesTLS12Secure) {
		t.Fatalf("expected the secure TLS 1.2 suite set, got %d suites", len(cfg.CipherSuites))
	}
}

func TestApplyCipherSuitesLegacyFallback(t *testing.T) {
	cfg := &tls.Config{}
	ApplyCipherSuites(cfg, VersionSSL30)
	if len(cfg.CipherSuites) != len(CipherSuitesLegacy) {
		t.Fatal("expected the legacy suite set for SSL 3.0")
	}
}
