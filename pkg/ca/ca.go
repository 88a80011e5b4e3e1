// Package ca mints leaf TLS certificates on the fly for MITM interception,
// grounded on the corpus's cache-by-host generate-on-miss pattern (e.g. the
// RWMutex-guarded certificate cache in saucelabs-martian-style proxies)
// wired to stdlib crypto/x509 and crypto/rsa for the actual signing, since
// an HTTP client has no certificate-minting logic of its own — it only
// dials TLS, it never terminates it.
package ca

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/wirespy/proxycore/pkg/errors"
)

// Authority is the collaborator interface a TLS MITM layer calls as
// mint(host, sans) → (cert, key): given a hostname and its SAN set, return a
// keypair/certificate the TLS MITM layer can present to the client.
type Authority interface {
	Mint(host string, sans []string) (*tls.Certificate, error)
	// RootCertPEM returns the CA's own certificate as raw DER bytes;
	// proxycore.RootCertPEM PEM-encodes it so the embedding driver can
	// install it in the browser's trust store.
	RootCertPEM() []byte
}

// SelfSigned is a minimal self-signed-root CA: a single RSA root keypair
// generated (or loaded) once, used to sign a fresh leaf certificate per
// distinct host, cached by host so repeat CONNECTs to the same origin
// reuse the same leaf (and so the browser doesn't re-prompt on every
// request).
type SelfSigned struct {
	rootCert *x509.Certificate
	rootKey  *rsa.PrivateKey
	rootDER  []byte

	mu    sync.RWMutex
	cache map[string]*tls.Certificate
}

// NewSelfSigned generates a fresh 2048-bit RSA root CA valid for ten years.
func NewSelfSigned(commonName string) (*SelfSigned, error) {
	rootKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.NewValidationError("generating CA root key: " + err.Error())
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errors.NewValidationError("generating CA serial: " + err.Error())
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"proxycore"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageCRLSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		return nil, errors.NewValidationError("self-signing CA root: " + err.Error())
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.NewValidationError("parsing generated CA root: " + err.Error())
	}

	return &SelfSigned{
		rootCert: cert,
		rootKey:  rootKey,
		rootDER:  der,
		cache:    make(map[string]*tls.Certificate),
	}, nil
}

// Mint returns a cached leaf certificate for host if one exists, else
// generates, signs, and caches a new one — the generate-on-miss,
// cache-by-host pattern common across the corpus's MITM proxies.
func (s *SelfSigned) Mint(host string, sans []string) (*tls.Certificate, error) {
	s.mu.RLock()
	if cert, ok := s.cache[host]; ok {
		s.mu.RUnlock()
		return cert, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cert, ok := s.cache[host]; ok { // re-check after acquiring the write lock
		return cert, nil
	}

	cert, err := s.generate(host, sans)
	if err != nil {
		return nil, err
	}
	s.cache[host] = cert
	return cert, nil
}

func (s *SelfSigned) generate(host string, sans []string) (*tls.Certificate, error) {
	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.NewTLSError(host, 0, err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errors.NewTLSError(host, 0, err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: host},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	allSANs := append([]string{host}, sans...)
	for _, name := range allSANs {
		if ip := net.ParseIP(name); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, name)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, s.rootCert, &leafKey.PublicKey, s.rootKey)
	if err != nil {
		return nil, errors.NewTLSError(host, 0, fmt.Errorf("signing leaf cert: %w", err))
	}

	return &tls.Certificate{
		Certificate: [][]byte{der, s.rootDER},
		PrivateKey:  leafKey,
		Leaf:        s.rootCert,
	}, nil
}

// RootCertPEM returns the CA root certificate in raw DER form; callers
// installing it in a trust store wrap it with pem.EncodeToMemory.
func (s *SelfSigned) RootCertPEM() []byte {
	return s.rootDER
}
