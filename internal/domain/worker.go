package domain

// WorkerEndpoint is what a worker advertises in the registry.
type WorkerEndpoint struct {
	ID       string `json:"id"`
	HTTPURL  string `json:"http_url,omitempty"`
	GRPCAddr string `json:"grpc_addr,omitempty"`
}

// WorkerSource yields the currently known worker endpoints.
type WorkerSource interface {
	GetWorkers() []WorkerEndpoint
}
