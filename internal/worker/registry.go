// internal/worker/registry.go
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"job-worker/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// RegistryPrefix is the etcd prefix workers register themselves under.
const RegistryPrefix = "/job-worker/workers/"

// LeaseKV is the part of the etcd client the registry uses.
// *clientv3.Client satisfies it.
type LeaseKV interface {
	clientv3.KV
	clientv3.Lease
}

// Registry keeps this worker's endpoint alive in etcd under a lease.
type Registry struct {
	client  LeaseKV
	logger  *slog.Logger
	leaseID clientv3.LeaseID
	key     string
}

// NewRegistry creates a new worker registry.
func NewRegistry(client LeaseKV, logger *slog.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger.With("component", "worker-registry"),
	}
}

// Register publishes the endpoint with a ttl-second lease and keeps the lease alive
// until Deregister is called or the process dies.
func (r *Registry) Register(ctx context.Context, endpoint domain.WorkerEndpoint, ttl int64) error {
	value, err := json.Marshal(endpoint)
	if err != nil {
		return fmt.Errorf("failed to marshal worker endpoint: %w", err)
	}
	r.key = RegistryPrefix + endpoint.ID

	leaseResp, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.leaseID = leaseResp.ID

	if _, err := r.client.Put(ctx, r.key, string(value), clientv3.WithLease(r.leaseID)); err != nil {
		return fmt.Errorf("failed to put worker registration key: %w", err)
	}

	keepAliveCh, err := r.client.KeepAlive(context.Background(), r.leaseID)
	if err != nil {
		return fmt.Errorf("failed to start keep-alive: %w", err)
	}

	go func() {
		for ka := range keepAliveCh {
			r.logger.Debug("lease keep-alive refreshed", "lease_id", ka.ID, "ttl", ka.TTL)
		}
		r.logger.Warn("keep-alive channel closed, worker registration may have expired")
	}()

	r.logger.Info("worker registered", "key", r.key, "http_url", endpoint.HTTPURL, "grpc_addr", endpoint.GRPCAddr)
	return nil
}

// Deregister revokes the lease, which deletes the registration key.
func (r *Registry) Deregister(ctx context.Context) error {
	r.logger.Info("deregistering worker", "key", r.key)
	if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	return nil
}
