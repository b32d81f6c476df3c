package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNoCertsFound is returned when PEM data holds no certificate.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")

	// ErrIncompleteKeyPair is returned when only one of cert and key is set.
	ErrIncompleteKeyPair = errors.New("tlsroots: client certificate and key must be set together")
)

// Config selects the trust roots and optional client certificate used to
// reach the lobby service.
type Config struct {
	// CAFile is a PEM bundle trusted in addition to the system roots.
	CAFile string
	// CertFile and KeyFile hold a client certificate for mutual TLS.
	CertFile string
	KeyFile  string
}

// IsZero reports whether cfg changes nothing from the default TLS setup.
func (c Config) IsZero() bool {
	return c.CAFile == "" && c.CertFile == "" && c.KeyFile == ""
}

// Pool is a set of trusted root certificates.
type Pool struct {
	certPool *x509.CertPool
}

// NewPool creates a pool seeded with the system roots, or an empty pool
// where the system roots are unavailable.
func NewPool() *Pool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		pool = x509.NewCertPool()
	}
	return &Pool{certPool: pool}
}

// NewEmptyPool creates a pool without system roots.
func NewEmptyPool() *Pool {
	return &Pool{certPool: x509.NewCertPool()}
}

// AddCertFile adds every certificate in a PEM file.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read cert file %s: %w", path, err)
	}
	return p.AddCertPEM(data)
}

// AddCertPEM adds every certificate in PEM data, skipping other blocks.
func (p *Pool) AddCertPEM(pemData []byte) error {
	added := 0
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		p.certPool.AddCert(cert)
		added++
	}
	if added == 0 {
		return ErrNoCertsFound
	}
	return nil
}

// Pool returns the underlying x509.CertPool.
func (p *Pool) Pool() *x509.CertPool {
	return p.certPool
}

// ClientTLS builds the client TLS configuration for cfg. The returned
// KeyPair is nil unless a client certificate is configured; callers that
// want certificate rotation hand it to a file watcher.
func ClientTLS(cfg Config) (*tls.Config, *KeyPair, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		pool := NewPool()
		if err := pool.AddCertFile(cfg.CAFile); err != nil {
			return nil, nil, err
		}
		tlsCfg.RootCAs = pool.Pool()
	}

	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, nil, ErrIncompleteKeyPair
	}
	if cfg.CertFile == "" {
		return tlsCfg, nil, nil
	}
	kp, err := LoadKeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, nil, err
	}
	tlsCfg.GetClientCertificate = kp.GetClientCertificate
	return tlsCfg, kp, nil
}
