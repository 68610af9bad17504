package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"

	"job-worker/internal/domain"
	"job-worker/internal/infra/analysis"
	"job-worker/internal/infra/imagegen"
	"job-worker/internal/rpc"
	"job-worker/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newClient(t *testing.T) rpc.WorkerClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := usecase.NewDispatchService(logger,
		analysis.NewAnalyzeDataHandler(logger),
		imagegen.NewGenerateImageHandler(logger),
	)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterWorkerServer(s, NewServer(svc, "w-1", logger))
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return rpc.NewWorkerClient(conn)
}

func dispatch(t *testing.T, client rpc.WorkerClient, req domain.JobRequest) (*domain.JobResult, error) {
	t.Helper()
	in, err := rpc.ToStruct(req)
	require.NoError(t, err)

	out, err := client.Dispatch(context.Background(), in)
	if err != nil {
		return nil, err
	}
	var res domain.JobResult
	require.NoError(t, rpc.FromStruct(out, &res))
	return &res, nil
}

func TestServer_AnalyzeData(t *testing.T) {
	client := newClient(t)

	res, err := dispatch(t, client, domain.JobRequest{
		RequestID: "r1",
		Job: domain.Job{
			Type:    domain.JobTypeAnalyzeData,
			Payload: domain.Payload{"dataset": "sales", "window": json.Number("7")},
		},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "r1", res.Data.RequestID)
	assert.Equal(t, domain.JobStatusCompleted, res.Data.Status)
	assert.Equal(t, analysis.Summary, res.Data.Output["summary"])
	source, ok := res.Data.Output["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "sales", source["dataset"])
	assert.Equal(t, json.Number("7"), source["window"])
}

func TestServer_DispatchErrorsAreInvalidArgument(t *testing.T) {
	client := newClient(t)

	tests := []struct {
		name string
		job  domain.Job
		msg  string
	}{
		{"missing prompt", domain.Job{Type: domain.JobTypeGenerateImage, Payload: domain.Payload{}}, "prompt is required"},
		{"unsupported type", domain.Job{Type: "transcode", Payload: domain.Payload{}}, "unsupported job type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dispatch(t, client, domain.JobRequest{RequestID: "r", Job: tt.job})
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.InvalidArgument, st.Code())
			assert.Equal(t, tt.msg, st.Message())
		})
	}
}
