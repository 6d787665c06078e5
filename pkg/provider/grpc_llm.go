package provider

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCLLMClient implements LLMProvider by calling an LLM completion
// gateway over gRPC, following the same connection pattern as
// GRPCEmbeddingClient.
type GRPCLLMClient struct {
	conn *grpc.ClientConn
}

// NewGRPCLLMClient dials addr and returns a ready client.
func NewGRPCLLMClient(addr string) (*GRPCLLMClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("creating LLM client for %s: %w", addr, err)
	}
	return &GRPCLLMClient{conn: conn}, nil
}

// Complete sends the conversation to the completion service and returns the
// assistant's raw text. The content may be malformed relative to whatever
// schema the caller expects — Complete itself makes no attempt to validate it.
func (c *GRPCLLMClient) Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error) {
	msgList := make([]any, len(messages))
	for i, m := range messages {
		msgList[i] = map[string]any{"role": m.Role, "content": m.Content}
	}

	req, err := structpb.NewStruct(map[string]any{
		"messages":    msgList,
		"temperature": temperature,
		"max_tokens":  float64(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("building completion request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/auditor.provider.v1.LLMService/Complete", req, resp); err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}

	textVal, ok := resp.Fields["text"]
	if !ok {
		return "", fmt.Errorf("%w: completion response missing text field", ErrMalformedOutput)
	}
	return textVal.GetStringValue(), nil
}

// Close releases the gRPC connection.
func (c *GRPCLLMClient) Close() error {
	return c.conn.Close()
}
