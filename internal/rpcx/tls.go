package rpcx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log"
	"os"

	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// TLSConfig names the certificate material for one endpoint. Spec.md
// treats certificate provisioning as an external collaborator; this
// only consumes whatever PEM files that collaborator produced.
type TLSConfig struct {
	CertFile   string // server: leaf cert; client: client cert for mTLS (without CertFile and KeyFile the client dials in plaintext)
	KeyFile    string
	ClientCA   string // server: pool used to verify client certs (mTLS); optional
	ServerCA   string // client: pool used to verify the server cert; optional (system pool if empty)
	ServerName string // client: overrides the SNI/verification name
}

func (c *TLSConfig) configured() bool {
	return c != nil && c.CertFile != "" && c.KeyFile != ""
}

func clientCredentials(cfg *TLSConfig) (credentials.TransportCredentials, error) {
	if !cfg.configured() {
		log.Printf("rpcx: no client certificate configured, falling back to plaintext transport")
		return insecure.NewCredentials(), nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}

	pool, err := caPool(cfg.ServerCA)
	if err != nil {
		return nil, err
	}

	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ServerName:   cfg.ServerName,
	}), nil
}

// ServerCredentials builds the transport credentials for a listener.
func ServerCredentials(cfg *TLSConfig) (credentials.TransportCredentials, error) {
	if !cfg.configured() {
		log.Printf("rpcx: no server certificate configured, falling back to plaintext transport")
		return insecure.NewCredentials(), nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	if cfg.ClientCA != "" {
		pool, err := caPool(cfg.ClientCA)
		if err != nil {
			return nil, err
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return credentials.NewTLS(tlsCfg), nil
}

func caPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA bundle %s: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates parsed from CA bundle %s", path)
	}
	return pool, nil
}
