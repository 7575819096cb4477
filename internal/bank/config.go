package bank

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

// fileOverrides is the optional bank.json shape operators may drop next
// to the binary to override listen/registry addresses without touching
// flags — mirrors the teacher's BinConfig JSON loading.
type fileOverrides struct {
	ListenAddr     string `json:"listen_addr"`
	RegistryAddr   string `json:"registry_addr"`
	StateFilePath  string `json:"state_file"`
	CredentialFile string `json:"credential_file"`
	HoldTTLSeconds int64  `json:"hold_ttl_seconds"`
}

// RuntimeConfig gathers everything cmd/bank needs beyond the account
// Config: where to listen, where the registry and TLS material live.
type RuntimeConfig struct {
	Config
	ListenAddr   string
	RegistryAddr string
	TLSCertFile  string
	TLSKeyFile   string
	TLSClientCA  string
}

// ParseFlags builds a RuntimeConfig from CLI flags, an optional
// bank.json override file, and spec.md §6's defaults. --name is
// required, per spec.md §6's CLI surface.
func ParseFlags(args []string) (RuntimeConfig, error) {
	fs := flag.NewFlagSet("bank", flag.ContinueOnError)
	name := fs.String("name", "", "bank name (required): identifies the registry entry and state file")
	listen := fs.String("listen", "127.0.0.1:0", "gRPC listen address")
	registry := fs.String("registry", "127.0.0.1:8500", "service registry address")
	stateFile := fs.String("state-file", "", "state file path (default: <name>.state.json)")
	credFile := fs.String("credential-file", "", "bootstrap credential file, read only if no state file exists")
	holdTTL := fs.Duration("hold-ttl", 10*time.Second, "hold expiry, must exceed CO's TIMEOUT2PC")
	configFile := fs.String("config", "bank.json", "optional JSON overrides file")
	certFile := fs.String("tls-cert", "", "server TLS certificate")
	keyFile := fs.String("tls-key", "", "server TLS key")
	clientCA := fs.String("tls-client-ca", "", "client CA bundle for mTLS")

	if err := fs.Parse(args); err != nil {
		return RuntimeConfig{}, err
	}
	if *name == "" {
		return RuntimeConfig{}, fmt.Errorf("bank: --name is required")
	}

	rc := RuntimeConfig{
		Config: Config{
			Name:           *name,
			HoldTTL:        *holdTTL,
			StateFilePath:  *stateFile,
			CredentialFile: *credFile,
		},
		ListenAddr:   *listen,
		RegistryAddr: *registry,
		TLSCertFile:  *certFile,
		TLSKeyFile:   *keyFile,
		TLSClientCA:  *clientCA,
	}
	if rc.StateFilePath == "" {
		rc.StateFilePath = *name + ".state.json"
	}

	if data, err := os.ReadFile(*configFile); err == nil {
		var ov fileOverrides
		if err := json.Unmarshal(data, &ov); err != nil {
			return RuntimeConfig{}, fmt.Errorf("bank: parse %s: %w", *configFile, err)
		}
		if ov.ListenAddr != "" {
			rc.ListenAddr = ov.ListenAddr
		}
		if ov.RegistryAddr != "" {
			rc.RegistryAddr = ov.RegistryAddr
		}
		if ov.StateFilePath != "" {
			rc.StateFilePath = ov.StateFilePath
		}
		if ov.CredentialFile != "" {
			rc.CredentialFile = ov.CredentialFile
		}
		if ov.HoldTTLSeconds > 0 {
			rc.HoldTTL = time.Duration(ov.HoldTTLSeconds) * time.Second
		}
	}

	return rc, nil
}
