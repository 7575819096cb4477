package coordinator

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

// fileOverrides mirrors the BP's optional JSON override file.
type fileOverrides struct {
	ListenAddr         string `json:"listen_addr"`
	RegistryAddr       string `json:"registry_addr"`
	DurableLogPath     string `json:"durable_log_path"`
	SigningKeyHex      string `json:"signing_key_hex"`
	Timeout2PCSeconds  int64  `json:"timeout_2pc_seconds"`
	TokenTTLSeconds    int64  `json:"token_ttl_seconds"`
	CommitRetryCapSecs int64  `json:"commit_retry_cap_seconds"`
}

// RuntimeConfig gathers every CO knob named in spec.md §6's table plus
// what cmd/coordinator needs to bind a listener and reach the registry.
type RuntimeConfig struct {
	ListenAddr     string
	RegistryAddr   string
	DurableLogPath string
	SigningKey     []byte
	Timeout2PC     time.Duration
	TokenTTL       time.Duration
	CommitRetryCap time.Duration
	TLSCertFile    string
	TLSKeyFile     string
	TLSClientCA    string
}

// ParseFlags builds a RuntimeConfig from CLI flags, an optional
// coordinator.json overrides file, and spec.md §6's defaults. CO takes
// no required positional arguments, per spec.md §6's CLI surface.
func ParseFlags(args []string) (RuntimeConfig, error) {
	fs := flag.NewFlagSet("coordinator", flag.ContinueOnError)
	listen := fs.String("listen", "127.0.0.1:0", "gRPC listen address")
	registry := fs.String("registry", "127.0.0.1:8500", "service registry address")
	logPath := fs.String("log", "coordinator.log.jsonl", "durable idempotency log path")
	signingKey := fs.String("signing-key", "", "hex-encoded HMAC signing key for issued tokens")
	timeout2pc := fs.Duration("timeout-2pc", 5*time.Second, "prepare-phase deadline (TIMEOUT2PC)")
	tokenTTL := fs.Duration("token-ttl", time.Hour, "issued token validity (TOKEN_TTL)")
	retryCap := fs.Duration("commit-retry-cap", 30*time.Second, "commit/abort backoff cap (COMMIT_RETRY_MAX)")
	configFile := fs.String("config", "coordinator.json", "optional JSON overrides file")
	certFile := fs.String("tls-cert", "", "server TLS certificate")
	keyFile := fs.String("tls-key", "", "server TLS key")
	clientCA := fs.String("tls-client-ca", "", "client CA bundle for mTLS")

	if err := fs.Parse(args); err != nil {
		return RuntimeConfig{}, err
	}

	rc := RuntimeConfig{
		ListenAddr:     *listen,
		RegistryAddr:   *registry,
		DurableLogPath: *logPath,
		Timeout2PC:     *timeout2pc,
		TokenTTL:       *tokenTTL,
		CommitRetryCap: *retryCap,
		TLSCertFile:    *certFile,
		TLSKeyFile:     *keyFile,
		TLSClientCA:    *clientCA,
	}

	if *signingKey != "" {
		key, err := hex.DecodeString(*signingKey)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("coordinator: --signing-key must be hex-encoded: %w", err)
		}
		rc.SigningKey = key
	}

	if data, err := os.ReadFile(*configFile); err == nil {
		var ov fileOverrides
		if err := json.Unmarshal(data, &ov); err != nil {
			return RuntimeConfig{}, fmt.Errorf("coordinator: parse %s: %w", *configFile, err)
		}
		if ov.ListenAddr != "" {
			rc.ListenAddr = ov.ListenAddr
		}
		if ov.RegistryAddr != "" {
			rc.RegistryAddr = ov.RegistryAddr
		}
		if ov.DurableLogPath != "" {
			rc.DurableLogPath = ov.DurableLogPath
		}
		if ov.SigningKeyHex != "" {
			key, err := hex.DecodeString(ov.SigningKeyHex)
			if err != nil {
				return RuntimeConfig{}, fmt.Errorf("coordinator: signing_key_hex must be hex-encoded: %w", err)
			}
			rc.SigningKey = key
		}
		if ov.Timeout2PCSeconds > 0 {
			rc.Timeout2PC = time.Duration(ov.Timeout2PCSeconds) * time.Second
		}
		if ov.TokenTTLSeconds > 0 {
			rc.TokenTTL = time.Duration(ov.TokenTTLSeconds) * time.Second
		}
		if ov.CommitRetryCapSecs > 0 {
			rc.CommitRetryCap = time.Duration(ov.CommitRetryCapSecs) * time.Second
		}
	}

	if len(rc.SigningKey) == 0 {
		return RuntimeConfig{}, fmt.Errorf("coordinator: a signing key is required (--signing-key or coordinator.json)")
	}

	return rc, nil
}
