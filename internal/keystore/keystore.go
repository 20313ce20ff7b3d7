// Package keystore loads the key material of the FTPS listener.
//
// Two formats are accepted: PEM (a certificate chain file plus a private
// key file) and Java KeyStore files, the format Apache FtpServer
// deployments usually ship with.
package keystore

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
)

// Type names a key store format.
type Type string

const (
	TypePEM Type = "PEM"
	TypeJKS Type = "JKS"
)

// Config locates the key material.
type Config struct {
	// File is the key store (JKS) or the private key (PEM).
	File string

	// Type is PEM or JKS, case-insensitive.
	Type string

	// Password unlocks a JKS file. Unused for PEM.
	Password string

	// KeyPassword unlocks the private key entry inside a JKS file. Defaults
	// to Password.
	KeyPassword string

	// CertFile is the PEM certificate chain. Only used for PEM.
	CertFile string

	// Alias selects the JKS entry; empty picks the first private key entry.
	Alias string
}

// Load reads the certificate and key described by cfg.
func Load(cfg Config) (tls.Certificate, error) {
	if cfg.File == "" {
		return tls.Certificate{}, errors.New("key store file is required")
	}

	switch Type(strings.ToUpper(cfg.Type)) {
	case TypePEM:
		return loadPEM(cfg)
	case TypeJKS:
		return loadJKS(cfg)
	default:
		return tls.Certificate{}, fmt.Errorf("unsupported key store type %q (supported: PEM, JKS)", cfg.Type)
	}
}

// TLSConfig wraps Load into a server-side tls.Config.
func TLSConfig(cfg Config) (*tls.Config, error) {
	cert, err := Load(cfg)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func loadPEM(cfg Config) (tls.Certificate, error) {
	if cfg.CertFile == "" {
		return tls.Certificate{}, errors.New("PEM key store requires cert_file")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.File)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load PEM key pair: %w", err)
	}
	return cert, nil
}

func loadJKS(cfg Config) (tls.Certificate, error) {
	if cfg.Password == "" {
		return tls.Certificate{}, errors.New("JKS key store requires a password")
	}

	data, err := os.ReadFile(cfg.File)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read key store: %w", err)
	}

	ks := jks.New()
	if err := ks.Load(bytes.NewReader(data), []byte(cfg.Password)); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode key store %s: %w", cfg.File, err)
	}

	alias, err := pickAlias(ks, cfg.Alias)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPassword := cfg.KeyPassword
	if keyPassword == "" {
		keyPassword = cfg.Password
	}
	entry, err := ks.GetPrivateKeyEntry(alias, []byte(keyPassword))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to unlock key %q: %w", alias, err)
	}

	key, err := x509.ParsePKCS8PrivateKey(entry.PrivateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse key %q: %w", alias, err)
	}
	if len(entry.CertificateChain) == 0 {
		return tls.Certificate{}, fmt.Errorf("key %q has no certificate chain", alias)
	}

	cert := tls.Certificate{PrivateKey: key}
	for _, c := range entry.CertificateChain {
		cert.Certificate = append(cert.Certificate, c.Content)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse certificate of %q: %w", alias, err)
	}
	cert.Leaf = leaf
	return cert, nil
}

func pickAlias(ks jks.KeyStore, want string) (string, error) {
	if want != "" {
		if !ks.IsPrivateKeyEntry(want) {
			return "", fmt.Errorf("key store has no private key entry %q", want)
		}
		return want, nil
	}

	aliases := ks.Aliases()
	sort.Strings(aliases)
	for _, a := range aliases {
		if ks.IsPrivateKeyEntry(a) {
			return a, nil
		}
	}
	return "", errors.New("key store has no private key entry")
}
