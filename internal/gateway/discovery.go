// internal/gateway/discovery.go
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"job-worker/internal/domain"
	"job-worker/internal/metrics"
	"job-worker/internal/worker"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// WorkerDiscovery tracks worker endpoints registered in etcd.
type WorkerDiscovery struct {
	client  *clientv3.Client
	logger  *slog.Logger
	workers map[string]domain.WorkerEndpoint // registry key -> endpoint
	mu      sync.RWMutex
}

// NewWorkerDiscovery creates a new discovery service.
func NewWorkerDiscovery(client *clientv3.Client, logger *slog.Logger) *WorkerDiscovery {
	return &WorkerDiscovery{
		client:  client,
		logger:  logger.With("component", "worker-discovery"),
		workers: make(map[string]domain.WorkerEndpoint),
	}
}

// WatchWorkers loads the current registrations and then follows changes.
// It blocks until ctx is cancelled and should be run in a goroutine.
func (d *WorkerDiscovery) WatchWorkers(ctx context.Context) {
	d.logger.Info("starting to watch for workers")

	if err := d.loadInitialWorkers(ctx); err != nil {
		d.logger.Error("failed to perform initial worker load", "error", err)
	}

	watchChan := d.client.Watch(ctx, worker.RegistryPrefix, clientv3.WithPrefix())
	for watchResp := range watchChan {
		for _, event := range watchResp.Events {
			key := string(event.Kv.Key)
			switch event.Type {
			case clientv3.EventTypePut:
				d.put(key, event.Kv.Value)
			case clientv3.EventTypeDelete:
				d.remove(key)
			}
		}
	}
	d.logger.Info("stopped watching for workers")
}

func (d *WorkerDiscovery) loadInitialWorkers(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := d.client.Get(ctx, worker.RegistryPrefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range resp.Kvs {
		d.put(string(kv.Key), kv.Value)
	}
	return nil
}

func (d *WorkerDiscovery) put(key string, value []byte) {
	var ep domain.WorkerEndpoint
	if err := json.Unmarshal(value, &ep); err != nil {
		d.logger.Warn("ignoring malformed worker registration", "key", key, "error", err)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.workers[key]; !ok {
		d.logger.Info("worker discovered", "id", ep.ID, "http_url", ep.HTTPURL, "grpc_addr", ep.GRPCAddr)
	}
	d.workers[key] = ep
	metrics.WorkersKnown.Set(float64(len(d.workers)))
}

func (d *WorkerDiscovery) remove(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ep, ok := d.workers[key]; ok {
		d.logger.Info("worker deregistered", "id", ep.ID)
		delete(d.workers, key)
	}
	metrics.WorkersKnown.Set(float64(len(d.workers)))
}

// GetWorkers returns a snapshot of the known endpoints ordered by worker ID.
func (d *WorkerDiscovery) GetWorkers() []domain.WorkerEndpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()

	eps := make([]domain.WorkerEndpoint, 0, len(d.workers))
	for _, ep := range d.workers {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].ID < eps[j].ID })
	return eps
}
