package ca

import (
	"crypto/x509"
	"testing"
)

func TestNewSelfSignedProducesCAFlaggedRoot(t *testing.T) {
	authority, err := NewSelfSigned("proxycore test CA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	root, err := x509.ParseCertificate(authority.RootCertPEM())
	if err != nil {
		t.Fatalf("failed to parse generated root: %v", err)
	}
	if !root.IsCA {
		t.Error("expected root certificate to be marked as a CA")
	}
	if root.Subject.CommonName != "proxycore test CA" {
		t.Errorf("unexpected CommonName: %q", root.Subject.CommonName)
	}
}

func TestMintCachesByHost(t *testing.T) {
	authority, err := NewSelfSigned("proxycore test CA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cert1, err := authority.Mint("example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cert2, err := authority.Mint("example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cert1 != cert2 {
		t.Error("expected cached cert to be returned for repeated Mint of same host")
	}
}

func TestMintDifferentHostsDifferentCerts(t *testing.T) {
	authority, err := NewSelfSigned("proxycore test CA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	certA, err := authority.Mint("a.example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	certB, err := authority.Mint("b.example.com", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if certA == certB {
		t.Error("expected distinct certs for distinct hosts")
	}
}

func TestMintLeafSignedByRoot(t *testing.T) {
	authority, err := NewSelfSigned("proxycore test CA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf, err := authority.Mint("example.com", []string{"alt.example.com", "127.0.0.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	leafCert, err := x509.ParseCertificate(leaf.Certificate[0])
	if err != nil {
		t.Fatalf("failed to parse leaf cert: %v", err)
	}
	root, err := x509.ParseCertificate(authority.RootCertPEM())
	if err != nil {
		t.Fatalf("failed to parse root cert: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(root)
	if _, err := leafCert.Verify(x509.VerifyOptions{
		DNSName: "example.com",
		Roots:   pool,
	}); err != nil {
		t.Errorf("expected leaf to verify against root: %v", err)
	}

	found := false
	for _, name := range leafCert.DNSNames {
		if name == "alt.example.com" {
			found = true
		}
	}
	if !found {
		t.Error("expected SAN alt.example.com on leaf cert")
	}
}
