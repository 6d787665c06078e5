// Package providertest holds deterministic in-memory fakes for the
// provider collaborator interfaces, used by package tests that need an
// EmbeddingProvider/LLMProvider/TicketingSystem/RepoSource without a live
// gRPC or HTTP backend.
package providertest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/complyance/auditor/pkg/provider"
)

// StubEmbeddingProvider returns a deterministic vector derived from the
// text's hash, so identical input always embeds identically without a
// network call.
type StubEmbeddingProvider struct {
	dim int
}

// NewStubEmbeddingProvider creates a stub producing vectors of width dim.
func NewStubEmbeddingProvider(dim int) *StubEmbeddingProvider {
	return &StubEmbeddingProvider{dim: dim}
}

func (s *StubEmbeddingProvider) Dimension() int { return s.dim }

func (s *StubEmbeddingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, s.dim)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255
	}
	return vec, nil
}

// StubLLMProvider returns a canned response, or a per-call override set via
// SetResponse, without making a network call.
type StubLLMProvider struct {
	mu       sync.Mutex
	response string
	err      error
}

// NewStubLLMProvider creates a stub that echoes response to every Complete call.
func NewStubLLMProvider(response string) *StubLLMProvider {
	return &StubLLMProvider{response: response}
}

// SetResponse changes what the next Complete call returns.
func (s *StubLLMProvider) SetResponse(response string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = response
}

// SetError makes the next Complete call fail with err.
func (s *StubLLMProvider) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *StubLLMProvider) Complete(_ context.Context, _ []provider.Message, _ float64, _ int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

// StubTicketingSystem assigns sequential ticket IDs and records every call,
// so tests can assert on at-most-once creation (P7) without a real
// ticketing backend.
type StubTicketingSystem struct {
	mu      sync.Mutex
	next    int
	Created []CreatedIssue
}

// CreatedIssue records one CreateIssue invocation for test assertions.
type CreatedIssue struct {
	Project, Title, Body, Priority string
	TicketID                       string
}

// NewStubTicketingSystem creates an empty stub.
func NewStubTicketingSystem() *StubTicketingSystem {
	return &StubTicketingSystem{}
}

func (s *StubTicketingSystem) CreateIssue(_ context.Context, project, title, body, priority string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := fmt.Sprintf("TICK-%d", s.next)
	s.Created = append(s.Created, CreatedIssue{Project: project, Title: title, Body: body, Priority: priority, TicketID: id})
	return id, nil
}

// StubRepoSource is an in-memory RepoSource backed by a fixed file set,
// for tests that drive the indexer without a network call.
type StubRepoSource struct {
	mu        sync.Mutex
	CommitSHA string
	Files     map[string][]byte
}

// NewStubRepoSource creates a stub resolving to commitSHA with the given
// file set.
func NewStubRepoSource(commitSHA string, files map[string][]byte) *StubRepoSource {
	return &StubRepoSource{CommitSHA: commitSHA, Files: files}
}

func (s *StubRepoSource) Clone(_ context.Context, _, _, _ string, _ string) (string, error) {
	return s.CommitSHA, nil
}

func (s *StubRepoSource) FileTree(_ context.Context, _, _ string, _ string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *StubRepoSource) File(_ context.Context, _, _, path string, _ string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.Files[path]
	if !ok {
		return nil, fmt.Errorf("stub repo source: no such file %q", path)
	}
	return content, nil
}
