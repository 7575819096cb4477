// Command coordinator runs the payment Coordinator: it mints bearer
// tokens on behalf of Bank Participants, drives two-phase commit across
// them, and keeps a durable idempotency log across restarts.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/interbank-gateway/atomicpay/internal/coordinator"
	"github.com/interbank-gateway/atomicpay/internal/coordpb"
	"github.com/interbank-gateway/atomicpay/internal/registry"
	"github.com/interbank-gateway/atomicpay/internal/rpcx"
)

func main() {
	cfg, err := coordinator.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("coordinator: %v", err)
	}

	tlsCfg := &rpcx.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile, ClientCA: cfg.TLSClientCA}

	regClient, regConn, err := registry.Dial(cfg.RegistryAddr, tlsCfg)
	if err != nil {
		log.Fatalf("coordinator: registry unreachable: %v", err)
	}
	defer regConn.Close()

	co, err := coordinator.New(cfg, regClient, tlsCfg)
	if err != nil {
		log.Fatalf("coordinator: %v", err)
	}

	server, err := rpcx.NewServer(tlsCfg)
	if err != nil {
		log.Fatalf("coordinator: %v", err)
	}
	server.RegisterService(&coordpb.ServiceDesc, coordinator.NewService(co))

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("coordinator: listen %s: %v", cfg.ListenAddr, err)
	}

	ctx := context.Background()
	lease, err := registry.RegisterAndHeartbeat(ctx, regClient, registry.CoordinatorRegistryName, lis.Addr().String(), lis.Addr().String())
	if err != nil {
		log.Fatalf("coordinator: register: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("coordinator: shutting down")
		lease.Stop(context.Background())
		server.GracefulStop()
	}()

	log.Printf("coordinator: listening on %s, registry %s", lis.Addr(), cfg.RegistryAddr)
	if err := server.Serve(lis); err != nil {
		log.Fatalf("coordinator: serve: %v", err)
	}
}
