package datapub

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/pkg/errors"
)

// TLSConfig holds client TLS options for stores reached over HTTPS.
type TLSConfig struct {
	// CertificatePath contains the path to the client certificate (.crt or .pem file)
	CertificatePath string `json:"certificate" help:"Path to client certificate file."`
	// CertificateKeyPath contains the path to the certificate key (.key file)
	CertificateKeyPath string `json:"key" help:"Path to client certificate key file."`
	// CACertPath is the path to a CA certificate (.crt or .pem file)
	CACertPath string `json:"ca-certificate" help:"Path to CA certificate file."`
	// SkipVerify disables verification of server certificates.
	SkipVerify bool `json:"skip-verify" help:"Disables verification of server certificates."`
}

// Enabled reports whether any TLS option is set.
func (c TLSConfig) Enabled() bool {
	return c.CertificatePath != "" || c.CACertPath != "" || c.SkipVerify
}

// GetTLSConfig builds a *tls.Config from tlsConfig. It returns nil if no
// option is set.
func GetTLSConfig(tlsConfig *TLSConfig) (*tls.Config, error) {
	if tlsConfig == nil || !tlsConfig.Enabled() {
		return nil, nil
	}
	conf := &tls.Config{
		InsecureSkipVerify: tlsConfig.SkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if tlsConfig.CertificatePath != "" {
		if tlsConfig.CertificateKeyPath == "" {
			return nil, errors.New("certificate key path must be set with certificate path")
		}
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertificatePath, tlsConfig.CertificateKeyPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading keypair")
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	if tlsConfig.CACertPath != "" {
		b, err := os.ReadFile(tlsConfig.CACertPath)
		if err != nil {
			return nil, errors.Wrap(err, "loading tls ca key")
		}
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM(b); !ok {
			return nil, errors.New("error parsing CA certificate")
		}
		conf.RootCAs = certPool
	}
	return conf, nil
}
