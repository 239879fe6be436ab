package tls

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/epicast/epicast/pkg/tls/tlstest"
)

func TestConfig_Validate(t *testing.T) {
	f := tlstest.WriteCerts(t)
	missing := filepath.Join(t.TempDir(), "missing.pem")

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores files", Config{CertFile: missing}, false},
		{"server files", Config{Enabled: true, CertFile: f.ServerCert, KeyFile: f.ServerKey}, false},
		{"ca only", Config{Enabled: true, CAFile: f.CA}, false},
		{"full mtls", Config{Enabled: true, CertFile: f.ServerCert, KeyFile: f.ServerKey, CAFile: f.CA}, false},
		{"cert without key", Config{Enabled: true, CertFile: f.ServerCert}, true},
		{"key without cert", Config{Enabled: true, KeyFile: f.ServerKey}, true},
		{"missing ca", Config{Enabled: true, CAFile: missing}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewServerConfig(t *testing.T) {
	f := tlstest.WriteCerts(t)

	cfg, err := NewServerConfig(Config{Enabled: true, CertFile: f.ServerCert, KeyFile: f.ServerKey})
	if err != nil {
		t.Fatalf("NewServerConfig failed: %v", err)
	}
	if cfg.MinVersion != tls.VersionTLS13 || len(cfg.Certificates) != 1 {
		t.Errorf("unexpected config: min=%x certs=%d", cfg.MinVersion, len(cfg.Certificates))
	}
	if cfg.ClientAuth != tls.NoClientCert {
		t.Errorf("ClientAuth = %v without CA, want NoClientCert", cfg.ClientAuth)
	}

	cfg, err = NewServerConfig(Config{Enabled: true, CertFile: f.ServerCert, KeyFile: f.ServerKey, CAFile: f.CA})
	if err != nil {
		t.Fatalf("NewServerConfig failed: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert || cfg.ClientCAs == nil {
		t.Error("a CA file should require client certificates")
	}

	if _, err := NewServerConfig(Config{Enabled: true, CAFile: f.CA}); err == nil {
		t.Error("expected error without server certificate")
	}
	if _, err := NewServerConfig(Config{Enabled: true, CertFile: f.ServerCert, KeyFile: f.ServerCert}); err == nil {
		t.Error("expected error for mismatched key")
	}
	if _, err := NewServerConfig(Config{Enabled: true, CertFile: f.ServerCert, KeyFile: f.ServerKey, CAFile: f.ServerKey}); err == nil {
		t.Error("expected error for CA file without certificates")
	}
}

func TestMutualTLSHandshake(t *testing.T) {
	f := tlstest.WriteCerts(t)

	serverCfg, err := NewServerConfig(Config{Enabled: true, CertFile: f.ServerCert, KeyFile: f.ServerKey, CAFile: f.CA})
	if err != nil {
		t.Fatalf("NewServerConfig failed: %v", err)
	}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = serverCfg
	srv.StartTLS()
	defer srv.Close()

	get := func(c Config) error {
		t.Helper()
		clientCfg, err := NewClientConfig(c)
		if err != nil {
			t.Fatalf("NewClientConfig failed: %v", err)
		}
		cli := &http.Client{Transport: &http.Transport{TLSClientConfig: clientCfg}}
		resp, err := cli.Get(srv.URL)
		if err != nil {
			return err
		}
		resp.Body.Close()
		return nil
	}

	if err := get(Config{Enabled: true, CertFile: f.ClientCert, KeyFile: f.ClientKey, CAFile: f.CA}); err != nil {
		t.Errorf("client with certificate rejected: %v", err)
	}
	if err := get(Config{Enabled: true, CAFile: f.CA}); err == nil {
		t.Error("client without certificate should be rejected")
	}
	if err := get(Config{Enabled: true, CertFile: f.ClientCert, KeyFile: f.ClientKey}); err == nil {
		t.Error("client should not trust the test CA through system roots")
	}
}
