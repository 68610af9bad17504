package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"job-worker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeEtcd records the lease and put calls a Registry makes. Embedded
// interfaces are nil, so unexpected calls panic.
type fakeEtcd struct {
	clientv3.KV
	clientv3.Lease

	mu         sync.Mutex
	grantErr   error
	grantedTTL int64
	puts       map[string]string
	putOpts    int
	revoked    []clientv3.LeaseID
	keepAlive  chan *clientv3.LeaseKeepAliveResponse
}

const fakeLeaseID clientv3.LeaseID = 42

func newFakeEtcd() *fakeEtcd {
	return &fakeEtcd{
		puts:      make(map[string]string),
		keepAlive: make(chan *clientv3.LeaseKeepAliveResponse, 1),
	}
}

func (f *fakeEtcd) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	f.grantedTTL = ttl
	return &clientv3.LeaseGrantResponse{ID: fakeLeaseID, TTL: ttl}, nil
}

func (f *fakeEtcd) Put(_ context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[key] = val
	f.putOpts = len(opts)
	return &clientv3.PutResponse{}, nil
}

func (f *fakeEtcd) KeepAlive(_ context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	f.keepAlive <- &clientv3.LeaseKeepAliveResponse{ID: id, TTL: f.grantedTTL}
	return f.keepAlive, nil
}

func (f *fakeEtcd) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, id)
	close(f.keepAlive)
	return &clientv3.LeaseRevokeResponse{}, nil
}

func testRegistryLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_RegisterAndDeregister(t *testing.T) {
	etcd := newFakeEtcd()
	reg := NewRegistry(etcd, testRegistryLogger())
	endpoint := domain.WorkerEndpoint{ID: "w-1", HTTPURL: "http://10.0.0.7:5001", GRPCAddr: "10.0.0.7:50052"}

	require.NoError(t, reg.Register(context.Background(), endpoint, 10))

	etcd.mu.Lock()
	assert.Equal(t, int64(10), etcd.grantedTTL)
	assert.Equal(t, 1, etcd.putOpts, "registration must be attached to the lease")
	raw, ok := etcd.puts[RegistryPrefix+"w-1"]
	etcd.mu.Unlock()
	require.True(t, ok, "key must be the registry prefix plus the worker id")

	var got domain.WorkerEndpoint
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, endpoint, got)
	assert.JSONEq(t, `{"id":"w-1","http_url":"http://10.0.0.7:5001","grpc_addr":"10.0.0.7:50052"}`, raw)

	require.NoError(t, reg.Deregister(context.Background()))
	etcd.mu.Lock()
	assert.Equal(t, []clientv3.LeaseID{fakeLeaseID}, etcd.revoked)
	etcd.mu.Unlock()
}

func TestRegistry_GrantFailure(t *testing.T) {
	etcd := newFakeEtcd()
	etcd.grantErr = errors.New("etcdserver: no leader")

	err := NewRegistry(etcd, testRegistryLogger()).Register(context.Background(), domain.WorkerEndpoint{ID: "w-1"}, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, etcd.grantErr)
	assert.Empty(t, etcd.puts)
}
