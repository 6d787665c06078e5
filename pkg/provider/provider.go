// Package provider defines the external collaborator interfaces consumed
// by the core (EmbeddingProvider, LLMProvider, RepoSource, TicketingSystem)
// and the gRPC/HTTP implementations that reach the real services, grounded
// on the teacher's pkg/agent gRPC client and pkg/runbook GitHub client.
package provider

import (
	"context"
	"errors"
)

// ErrMalformedOutput signals a provider returned content that could not be
// parsed into the expected shape (spec §7's Semantic error class). Callers
// coerce rather than retry.
var ErrMalformedOutput = errors.New("provider: malformed output")

// EmbeddingProvider turns text into a fixed-dimension dense vector. D is
// stable for the lifetime of a deployment.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Message is one turn in an LLMProvider conversation.
type Message struct {
	Role    string
	Content string
}

// LLMProvider completes a conversation. It may return malformed content —
// callers are responsible for schema validation and coercion.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message, temperature float64, maxTokens int) (string, error)
}

// RepoSource fetches repository content for indexing.
type RepoSource interface {
	// Clone shallow-clones url at ref into dest and returns the resolved commit SHA.
	Clone(ctx context.Context, url, ref, dest string, credential string) (commitSHA string, err error)
	// FileTree lists every file path tracked at ref.
	FileTree(ctx context.Context, url, ref string, credential string) ([]string, error)
	// File returns the raw bytes of path at ref.
	File(ctx context.Context, url, ref, path string, credential string) ([]byte, error)
}

// TicketingSystem creates external tickets for remediation tasks.
type TicketingSystem interface {
	CreateIssue(ctx context.Context, project, title, body, priority string) (ticketID string, err error)
}
