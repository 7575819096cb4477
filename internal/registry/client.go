package registry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/rpcx"
	"google.golang.org/grpc"
)

// Lease is held by a process that registered itself and wants to keep
// renewing until it shuts down gracefully.
type Lease struct {
	client  *Client
	name    string
	leaseID string
	cancel  context.CancelFunc
}

// Dial connects to the registry at addr and returns a Client together
// with the underlying connection, which the caller closes.
func Dial(addr string, tlsCfg *rpcx.TLSConfig) (*Client, *grpc.ClientConn, error) {
	conn, err := rpcx.Dial(addr, tlsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("registry: dial %s: %w", addr, err)
	}
	return NewClient(conn), conn, nil
}

// RegisterAndHeartbeat registers name -> selfAddress and starts a
// background goroutine renewing the lease until the returned Lease is
// stopped. It is used by CO and BP at startup (spec.md §6: "BPs and CO
// register at startup, deregister on graceful shutdown").
func RegisterAndHeartbeat(ctx context.Context, client *Client, name, selfAddress, healthAddress string) (*Lease, error) {
	resp, err := client.Register(ctx, &RegisterRequest{
		Name:          name,
		Address:       selfAddress,
		HealthAddress: healthAddress,
		LeaseSeconds:  int64(defaultLease.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: register %s: %w", name, err)
	}

	heartbeatCtx, cancel := context.WithCancel(context.Background())
	lease := &Lease{client: client, name: name, leaseID: resp.LeaseID, cancel: cancel}

	go func() {
		ticker := time.NewTicker(defaultLease / 3)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				return
			case <-ticker.C:
				hctx, hcancel := context.WithTimeout(heartbeatCtx, 2*time.Second)
				_, err := client.Heartbeat(hctx, &HeartbeatRequest{Name: name, LeaseID: lease.leaseID})
				hcancel()
				if err != nil {
					log.Printf("registry: heartbeat for %s failed: %v", name, err)
				}
			}
		}
	}()

	return lease, nil
}

// Stop deregisters and halts the heartbeat goroutine. Called on
// graceful shutdown.
func (l *Lease) Stop(ctx context.Context) {
	l.cancel()
	if _, err := l.client.Deregister(ctx, &DeregisterRequest{Name: l.name, LeaseID: l.leaseID}); err != nil {
		log.Printf("registry: deregister %s failed: %v", l.name, err)
	}
}

// LookupAddress resolves a registered name to an address, returning an
// "unavailable" error if the entry is missing or its lease has expired.
func LookupAddress(ctx context.Context, client *Client, name string) (string, error) {
	resp, err := client.Lookup(ctx, &LookupRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("unavailable: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s: %s", resp.Error, name)
	}
	return resp.Address, nil
}

// BankRegistryName is the conventional key BPs publish themselves
// under, per spec.md §6 ("bank/<bank_name>").
func BankRegistryName(bank string) string { return "bank/" + bank }

// CoordinatorRegistryName is the single coordinator entry's key.
const CoordinatorRegistryName = "coordinator"
