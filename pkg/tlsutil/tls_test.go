package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func generateTestCert(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	certFile := filepath.Join(dir, "test.crt")
	keyFile := filepath.Join(dir, "test.key")
	if err := GenerateSelfSignedCert(certFile, keyFile, "conductor-test"); err != nil {
		t.Fatalf("failed to generate certificate: %v", err)
	}
	return certFile, keyFile
}

func TestGenerateSelfSignedCert(t *testing.T) {
	certFile, keyFile := generateTestCert(t)

	data, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatalf("failed to read certificate: %v", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatal("certificate file is not PEM encoded")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	if cert.Subject.CommonName != "conductor-test" {
		t.Errorf("unexpected common name %q", cert.Subject.CommonName)
	}

	if _, err := tls.LoadX509KeyPair(certFile, keyFile); err != nil {
		t.Errorf("generated pair does not load: %v", err)
	}
}

func TestLoadServerTLSConfig(t *testing.T) {
	certFile, keyFile := generateTestCert(t)

	cfg, err := LoadServerTLSConfig(certFile, keyFile, "", false)
	if err != nil {
		t.Fatalf("failed to load server config: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected TLS 1.2 minimum, got %x", cfg.MinVersion)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
}

func TestLoadServerTLSConfigWithClientCA(t *testing.T) {
	certFile, keyFile := generateTestCert(t)

	cfg, err := LoadServerTLSConfig(certFile, keyFile, certFile, true)
	if err != nil {
		t.Fatalf("failed to load mTLS config: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("expected client certs to be required, got %v", cfg.ClientAuth)
	}
	if cfg.ClientCAs == nil {
		t.Error("expected a client CA pool")
	}
}

func TestLoadClientTLSConfig(t *testing.T) {
	certFile, keyFile := generateTestCert(t)

	cfg, err := LoadClientTLSConfig(certFile, keyFile, certFile, false)
	if err != nil {
		t.Fatalf("failed to load client config: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Errorf("expected 1 certificate, got %d", len(cfg.Certificates))
	}
	if cfg.RootCAs == nil {
		t.Error("expected a root CA pool")
	}

	insecure, err := LoadClientTLSConfig("", "", "", true)
	if err != nil {
		t.Fatalf("failed to load insecure config: %v", err)
	}
	if !insecure.InsecureSkipVerify {
		t.Error("expected InsecureSkipVerify to be set")
	}
}
