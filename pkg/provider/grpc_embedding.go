package provider

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCEmbeddingClient implements EmbeddingProvider by calling an embedding
// gateway over gRPC, mirroring the teacher's GRPCLLMClient connection
// pattern (plaintext transport, sidecar deployment). The service contract
// is carried as google.protobuf.Struct so the client needs no
// repository-local generated stubs.
type GRPCEmbeddingClient struct {
	conn      *grpc.ClientConn
	dimension int
}

// NewGRPCEmbeddingClient dials addr and returns a ready client. dimension
// is the provider's fixed output width, stable across the deployment.
func NewGRPCEmbeddingClient(addr string, dimension int) (*GRPCEmbeddingClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("creating embedding client for %s: %w", addr, err)
	}
	return &GRPCEmbeddingClient{conn: conn, dimension: dimension}, nil
}

// Dimension returns the configured output width.
func (c *GRPCEmbeddingClient) Dimension() int { return c.dimension }

// Embed sends text to the embedding service and returns its vector.
func (c *GRPCEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return nil, fmt.Errorf("building embed request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/auditor.provider.v1.EmbeddingService/Embed", req, resp); err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}

	vecVal, ok := resp.Fields["vector"]
	if !ok {
		return nil, fmt.Errorf("%w: embedding response missing vector field", ErrMalformedOutput)
	}
	list := vecVal.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: embedding response vector is not a list", ErrMalformedOutput)
	}

	vec := make([]float32, len(list.Values))
	for i, v := range list.Values {
		vec[i] = float32(v.GetNumberValue())
	}
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("%w: embedding dimension %d, expected %d", ErrMalformedOutput, len(vec), c.dimension)
	}
	return vec, nil
}

// Close releases the gRPC connection.
func (c *GRPCEmbeddingClient) Close() error {
	return c.conn.Close()
}
