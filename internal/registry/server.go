package registry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/interbank-gateway/atomicpay/internal/ledger"
)

type entry struct {
	address       string
	healthAddress string
	leaseID       string
	expiresAt     time.Time
}

// Registry is a process-local name -> (address, lease) store. It is the
// in-repo stand-in for the external "key/value + health store" spec.md
// §6 names but leaves unspecified.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

const defaultLease = 15 * time.Second

func (r *Registry) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	if req.Name == "" || req.Address == "" {
		return nil, fmt.Errorf("registry: name and address are required")
	}

	lease := time.Duration(req.LeaseSeconds) * time.Second
	if lease <= 0 {
		lease = defaultLease
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	leaseID := ledger.RandomHex(8)
	r.entries[req.Name] = &entry{
		address:       req.Address,
		healthAddress: req.HealthAddress,
		leaseID:       leaseID,
		expiresAt:     time.Now().Add(lease),
	}
	log.Printf("registry: registered %s -> %s (lease %s)", req.Name, req.Address, lease)

	return &RegisterResponse{LeaseID: leaseID}, nil
}

func (r *Registry) Heartbeat(ctx context.Context, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[req.Name]
	if !ok || e.leaseID != req.LeaseID {
		return &HeartbeatResponse{OK: false, Error: "unknown_lease"}, nil
	}
	e.expiresAt = time.Now().Add(defaultLease)
	return &HeartbeatResponse{OK: true}, nil
}

func (r *Registry) Deregister(ctx context.Context, req *DeregisterRequest) (*DeregisterResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[req.Name]; ok && e.leaseID == req.LeaseID {
		delete(r.entries, req.Name)
		log.Printf("registry: deregistered %s", req.Name)
	}
	return &DeregisterResponse{}, nil
}

func (r *Registry) Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[req.Name]
	if !ok {
		return &LookupResponse{Error: "unavailable"}, nil
	}
	healthy := time.Now().Before(e.expiresAt)
	if !healthy {
		return &LookupResponse{Address: e.address, Healthy: false, Error: "unavailable"}, nil
	}
	return &LookupResponse{Address: e.address, Healthy: true}, nil
}
