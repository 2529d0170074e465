// Package tlsconfig builds client TLS configurations for the broker sinks
// from key and trust stores. Stores may be PKCS#12 bundles (.p12, .pfx) or
// PEM files. PKCS#12 keystores and truststores are read with both the legacy
// 3DES/RC2 and the PBES2/AES encryption current JDKs write.
package tlsconfig

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"software.sslmate.com/src/go-pkcs12"
)

// Settings carries the TLS material of a broker connection.
type Settings struct {
	// VerifyHost enables hostname verification. When false the peer chain is
	// still verified against the trust material.
	VerifyHost bool
	// ClientAuthRequired presents the keystore's key pair to the broker.
	ClientAuthRequired bool

	Keystore           string
	KeystorePassword   string
	Truststore         string
	TruststorePassword string
}

// ErrNoTrustMaterial is returned when neither a truststore nor a keystore is
// configured.
var ErrNoTrustMaterial = errors.New("tls: either truststore or keystore is required")

// Build returns a client TLS configuration. The keystore doubles as the
// truststore when no truststore is configured.
func Build(s Settings) (*tls.Config, error) {
	if s.Truststore == "" && s.Keystore == "" {
		return nil, ErrNoTrustMaterial
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	trustPath, trustPassword := s.Truststore, s.TruststorePassword
	if trustPath == "" {
		trustPath, trustPassword = s.Keystore, s.KeystorePassword
	}
	trust, err := loadStore(trustPath, trustPassword)
	if err != nil {
		return nil, fmt.Errorf("load truststore: %w", err)
	}
	if len(trust.certs) == 0 {
		return nil, fmt.Errorf("load truststore: %s contains no certificates", trustPath)
	}
	roots := x509.NewCertPool()
	for _, cert := range trust.certs {
		roots.AddCert(cert)
	}
	cfg.RootCAs = roots

	if s.ClientAuthRequired {
		if s.Keystore == "" {
			return nil, errors.New("tls: client authentication requires a keystore")
		}
		key, err := loadStore(s.Keystore, s.KeystorePassword)
		if err != nil {
			return nil, fmt.Errorf("load keystore: %w", err)
		}
		pair, err := tls.X509KeyPair(key.certPEM, key.keyPEM)
		if err != nil {
			return nil, fmt.Errorf("load keystore key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	if !s.VerifyHost {
		// Hostname checks are skipped, chain verification is not.
		cfg.InsecureSkipVerify = true
		cfg.VerifyConnection = verifyChain(roots)
	}

	return cfg, nil
}

func verifyChain(roots *x509.CertPool) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("tls: peer presented no certificates")
		}
		intermediates := x509.NewCertPool()
		for _, cert := range cs.PeerCertificates[1:] {
			intermediates.AddCert(cert)
		}
		_, err := cs.PeerCertificates[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
		})
		return err
	}
}

type store struct {
	certs   []*x509.Certificate
	certPEM []byte
	keyPEM  []byte
}

func loadStore(path, password string) (store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return store{}, err
	}

	if !bytes.Contains(raw, []byte("-----BEGIN")) {
		out, err := decodePKCS12(raw, password)
		if err != nil {
			return store{}, fmt.Errorf("decode pkcs12 %s: %w", path, err)
		}
		return out, nil
	}

	var out store
	for rest := raw; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return store{}, fmt.Errorf("parse certificate in %s: %w", path, err)
			}
			out.addCert(cert)
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			out.keyPEM = pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: block.Bytes})
		}
	}
	return out, nil
}

// decodePKCS12 reads a keystore (one key bag plus its chain) and falls back
// to a truststore of trusted certificate bags.
func decodePKCS12(raw []byte, password string) (store, error) {
	key, leaf, chain, chainErr := pkcs12.DecodeChain(raw, password)
	if chainErr == nil {
		keyDER, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return store{}, fmt.Errorf("marshal private key: %w", err)
		}
		var out store
		out.addCert(leaf)
		for _, cert := range chain {
			out.addCert(cert)
		}
		out.keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
		return out, nil
	}

	certs, err := pkcs12.DecodeTrustStore(raw, password)
	if err != nil {
		return store{}, errors.Join(chainErr, err)
	}
	var out store
	for _, cert := range certs {
		out.addCert(cert)
	}
	return out, nil
}

func (s *store) addCert(cert *x509.Certificate) {
	s.certs = append(s.certs, cert)
	s.certPEM = append(s.certPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
}
