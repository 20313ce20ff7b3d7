package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type material struct {
	certDER []byte
	keyDER  []byte
}

func newMaterial(t *testing.T) material {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "ftpbridge.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"ftpbridge.test"},
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return material{certDER: certDER, keyDER: keyDER}
}

func writePEM(t *testing.T, m material) (certFile, keyFile string) {
	t.Helper()
	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: m.certDER}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: m.keyDER}), 0o600))
	return certFile, keyFile
}

func writeJKS(t *testing.T, m material, storePass, keyPass string) string {
	t.Helper()

	ks := jks.New()
	require.NoError(t, ks.SetPrivateKeyEntry("ftpserver", jks.PrivateKeyEntry{
		CreationTime: time.Now(),
		PrivateKey:   m.keyDER,
		CertificateChain: []jks.Certificate{
			{Type: "X509", Content: m.certDER},
		},
	}, []byte(keyPass)))

	file := filepath.Join(t.TempDir(), "ftpserver.jks")
	f, err := os.Create(file)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, ks.Store(f, []byte(storePass)))
	return file
}

func TestLoadPEM(t *testing.T) {
	m := newMaterial(t)
	certFile, keyFile := writePEM(t, m)

	cert, err := Load(Config{File: keyFile, CertFile: certFile, Type: "pem"})
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	assert.Equal(t, m.certDER, cert.Certificate[0])

	_, err = Load(Config{File: keyFile, Type: "PEM"})
	assert.Error(t, err)
}

func TestLoadJKS(t *testing.T) {
	m := newMaterial(t)
	file := writeJKS(t, m, "changeit", "keypass1")

	cert, err := Load(Config{File: file, Type: "JKS", Password: "changeit", KeyPassword: "keypass1"})
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, "ftpbridge.test", cert.Leaf.Subject.CommonName)
	assert.NotNil(t, cert.PrivateKey)

	_, err = Load(Config{File: file, Type: "JKS", Password: "changeit", KeyPassword: "wrong-pass"})
	assert.Error(t, err)

	_, err = Load(Config{File: file, Type: "JKS", Password: "wrong-pass"})
	assert.Error(t, err)

	_, err = Load(Config{File: file, Type: "JKS", Password: "changeit", KeyPassword: "keypass1", Alias: "missing"})
	assert.Error(t, err)
}

func TestLoadJKS_KeyPasswordDefaultsToStorePassword(t *testing.T) {
	m := newMaterial(t)
	file := writeJKS(t, m, "changeit", "changeit")

	tlsConfig, err := TLSConfig(Config{File: file, Type: "jks", Password: "changeit"})
	require.NoError(t, err)
	assert.Len(t, tlsConfig.Certificates, 1)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(Config{Type: "PEM"})
	assert.Error(t, err)

	_, err = Load(Config{File: "x", Type: "PKCS12"})
	assert.Error(t, err)

	_, err = Load(Config{File: "x", Type: "JKS"})
	assert.Error(t, err)
}
