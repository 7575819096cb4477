// Command bank runs one Bank Participant: it owns a set of accounts,
// registers itself with the service registry as bank/<name>, and
// serves the BankService RPC surface until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/interbank-gateway/atomicpay/internal/bank"
	"github.com/interbank-gateway/atomicpay/internal/bankpb"
	"github.com/interbank-gateway/atomicpay/internal/registry"
	"github.com/interbank-gateway/atomicpay/internal/rpcx"
)

func main() {
	cfg, err := bank.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("bank: %v", err)
	}

	participant := bank.NewParticipant(cfg.Config)

	if err := participant.Load(cfg.StateFilePath); err != nil {
		log.Fatalf("bank[%s]: %v", cfg.Name, err)
	}
	_, statErr := os.Stat(cfg.StateFilePath)
	if cfg.CredentialFile != "" && os.IsNotExist(statErr) {
		if err := participant.LoadCredentials(cfg.CredentialFile); err != nil {
			log.Printf("bank[%s]: credential bootstrap skipped: %v", cfg.Name, err)
		}
	}

	tlsCfg := &rpcx.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile, ClientCA: cfg.TLSClientCA}
	server, err := rpcx.NewServer(tlsCfg)
	if err != nil {
		log.Fatalf("bank[%s]: %v", cfg.Name, err)
	}
	server.RegisterService(&bankpb.ServiceDesc, bank.NewService(participant))

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("bank[%s]: listen %s: %v", cfg.Name, cfg.ListenAddr, err)
	}

	regClient, regConn, err := registry.Dial(cfg.RegistryAddr, tlsCfg)
	if err != nil {
		log.Fatalf("bank[%s]: registry unreachable: %v", cfg.Name, err)
	}
	defer regConn.Close()

	ctx := context.Background()
	lease, err := registry.RegisterAndHeartbeat(ctx, regClient, registry.BankRegistryName(cfg.Name), lis.Addr().String(), lis.Addr().String())
	if err != nil {
		log.Fatalf("bank[%s]: register: %v", cfg.Name, err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("bank[%s]: shutting down", cfg.Name)
		lease.Stop(context.Background())
		participant.Stop()
		if err := participant.Save(cfg.StateFilePath); err != nil {
			log.Printf("bank[%s]: save state: %v", cfg.Name, err)
		}
		server.GracefulStop()
	}()

	log.Printf("bank[%s]: listening on %s, registry %s", cfg.Name, lis.Addr(), cfg.RegistryAddr)
	if err := server.Serve(lis); err != nil {
		log.Fatalf("bank[%s]: serve: %v", cfg.Name, err)
	}
}
