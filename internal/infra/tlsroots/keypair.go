package tlsroots

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/yndnr/lobbysync-go/internal/telemetry/logger"
)

// KeyPair holds a client certificate that can be reloaded from disk while
// connections are being made.
type KeyPair struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate
}

// LoadKeyPair reads the certificate and key.
func LoadKeyPair(certFile, keyFile string) (*KeyPair, error) {
	kp := &KeyPair{certFile: certFile, keyFile: keyFile}
	if err := kp.Reload(); err != nil {
		return nil, err
	}
	return kp, nil
}

// Reload re-reads the files. On error the previous certificate stays in use.
func (kp *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	kp.mu.Lock()
	kp.cert = &cert
	kp.mu.Unlock()
	return nil
}

// Files returns the certificate and key paths.
func (kp *KeyPair) Files() (certFile, keyFile string) {
	return kp.certFile, kp.keyFile
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (kp *KeyPair) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	return kp.cert, nil
}

// FileWatcher is the part of confloader.Watcher a KeyPair needs.
type FileWatcher interface {
	Watch(path string) error
	OnChange(func(path string))
}

// WatchFiles reloads the key pair whenever w reports a change to its
// certificate or key file.
func (kp *KeyPair) WatchFiles(w FileWatcher, log logger.Logger) error {
	log = logger.OrDefault(log)
	for _, f := range []string{kp.certFile, kp.keyFile} {
		if err := w.Watch(f); err != nil {
			return err
		}
	}
	certFile, keyFile := filepath.Clean(kp.certFile), filepath.Clean(kp.keyFile)
	w.OnChange(func(path string) {
		if path != certFile && path != keyFile {
			return
		}
		if err := kp.Reload(); err != nil {
			log.Error("client certificate reload failed", "cert_file", certFile, "error", err)
			return
		}
		log.Info("client certificate reloaded", "cert_file", certFile)
	})
	return nil
}
