package tls

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeCAFile generates a self-signed certificate and writes it as a PEM
// bundle.
func writeCAFile(t *testing.T) string {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-ca"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IsCA:         true,
		KeyUsage:     x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write CA file: %v", err)
	}
	return path
}

func TestClientConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := ClientConfig("smtp.example.com", "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := cfg.ServerName, "smtp.example.com"; got != want {
		t.Errorf("server name: got %q, want %q", got, want)
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("min version: got %d, want TLS 1.2", cfg.MinVersion)
	}
	if cfg.InsecureSkipVerify {
		t.Error("verification should be enabled by default")
	}
	if cfg.RootCAs != nil {
		t.Error("root CAs should default to the system pool")
	}
}

func TestClientConfig_Insecure(t *testing.T) {
	t.Parallel()

	cfg, err := ClientConfig("smtp.example.com", "", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.InsecureSkipVerify {
		t.Error("expected verification to be disabled")
	}
}

func TestClientConfig_CAFile(t *testing.T) {
	t.Parallel()

	cfg, err := ClientConfig("smtp.example.com", writeCAFile(t), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RootCAs == nil {
		t.Error("expected a root CA pool")
	}
}

func TestClientConfig_CAFileErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := ClientConfig("smtp.example.com", filepath.Join(t.TempDir(), "nope.pem"), false); err == nil {
			t.Error("expected an error for a missing file")
		}
	})

	t.Run("no certificates", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "empty.pem")
		if err := os.WriteFile(path, []byte("not a certificate"), 0o600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := ClientConfig("smtp.example.com", path, false); err == nil {
			t.Error("expected an error for a bundle without certificates")
		}
	})
}
