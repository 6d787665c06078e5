// Package chunker is the Chunker (spec 4.A): it turns a file's raw content
// into an ordered list of CodeChunk drafts ready for enrichment and
// persistence. It is grounded on the teacher pack's vjache-cie
// pkg/ingestion parser, which runs the same two-tier strategy this
// package generalizes: a lightweight heuristic extractor that is always
// available, with tree-sitter as a pluggable, higher-fidelity backend
// (vjache-cie's own parser.go documents exactly this "heuristic first,
// tree-sitter behind a flag" progression).
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/complyance/auditor/pkg/config"
	"github.com/complyance/auditor/pkg/model"
)

// SpanExtractor extracts function/class/declaration spans from source text.
// The heuristic extractor (heuristic.go) always satisfies this; the
// tree-sitter backend (treesitter.go) is a pluggable, higher-fidelity
// alternative selected when a grammar is registered for the language
// (spec 4.A: "AST integration is a pluggable capability; when absent, the
// heuristic extractor is authoritative").
type SpanExtractor interface {
	// Extract returns the spans found in content, as 1-indexed inclusive
	// [startLine, endLine] pairs, in file order. nodeType is the AST node
	// kind when known ("function_declaration", "class_definition", ...),
	// empty for the heuristic extractor.
	Extract(language string, content string) []Span
}

// Span is one candidate chunk boundary before token normalization.
type Span struct {
	StartLine int
	EndLine   int
	NodeType  string
}

// Chunker turns file content into CodeChunk drafts.
type Chunker struct {
	cfg        *config.ChunkingConfig
	astBackend SpanExtractor // nil unless a tree-sitter grammar is registered
	heuristic  SpanExtractor
}

// New creates a Chunker. astBackend may be nil, in which case the
// heuristic extractor is authoritative for every language.
func New(cfg *config.ChunkingConfig, astBackend SpanExtractor) *Chunker {
	return &Chunker{
		cfg:        cfg,
		astBackend: astBackend,
		heuristic:  HeuristicExtractor{},
	}
}

// ChunkFile runs the full spec 4.A pipeline for one file: language
// detection, span extraction (AST if available, else heuristic, else
// fixed-window fallback), token normalization, and best-effort
// enrichment. A file with an unrecognized extension yields zero chunks.
// The chunks returned are drafts: RepoID, FileHash, and line-accurate
// ChunkHash are set, but Embedding/NLSummary are left nil for the
// enrichment stage to fill in.
func (c *Chunker) ChunkFile(repoID, filePath string, content []byte) (drafts []*model.CodeChunk, err error) {
	defer func() {
		// A chunker exception on one file is logged and the file is
		// skipped; the pipeline continues (spec 4.A "Failure").
		if r := recover(); r != nil {
			slog.Error("chunker panic, skipping file", "file_path", filePath, "panic", r)
			drafts, err = nil, fmt.Errorf("chunking %s: %v", filePath, r)
		}
	}()

	language := DetectLanguage(filePath)
	if language == "" {
		return nil, nil
	}

	text := string(content)
	lines := splitLines(text)
	fileHash := sha256Hex(text)

	spans := c.extractSpans(language, text)
	var rawChunks []Span
	if len(spans) > 0 {
		rawChunks = spans
	} else {
		rawChunks = fixedWindows(len(lines), c.cfg.FallbackWindowLines)
	}

	var out []*model.CodeChunk
	for _, span := range rawChunks {
		for _, sub := range c.normalize(span, lines) {
			text := joinLines(lines, sub.StartLine, sub.EndLine)
			tokens := EstimateTokens(text)
			if tokens < c.cfg.MinChunkTokens {
				continue
			}
			draft := &model.CodeChunk{
				RepoID:      repoID,
				FilePath:    filePath,
				Language:    language,
				StartLine:   sub.StartLine,
				EndLine:     sub.EndLine,
				ChunkText:   text,
				ASTNodeType: sub.NodeType,
				FileHash:    fileHash,
				ChunkHash:   sha256Hex(text),
				DeltaType:   model.DeltaAdded,
			}
			enrich(draft)
			out = append(out, draft)
		}
	}
	return out, nil
}

// extractSpans prefers the AST backend for languages it supports, falling
// back to the heuristic extractor otherwise.
func (c *Chunker) extractSpans(language, text string) []Span {
	if c.astBackend != nil {
		if spans := c.astBackend.Extract(language, text); spans != nil {
			return spans
		}
	}
	return c.heuristic.Extract(language, text)
}

// normalize splits a span exceeding max_tokens into line-aligned
// sub-chunks of at most max_tokens, preserving absolute line numbers
// (spec 4.A). A span at or under the limit is returned unchanged.
func (c *Chunker) normalize(span Span, lines []string) []Span {
	text := joinLines(lines, span.StartLine, span.EndLine)
	if EstimateTokens(text) <= c.cfg.MaxChunkTokens {
		return []Span{span}
	}

	maxCharsPerSub := c.cfg.MaxChunkTokens * 4
	var out []Span
	start := span.StartLine
	charCount := 0
	lineStart := span.StartLine
	for line := span.StartLine; line <= span.EndLine; line++ {
		lineLen := len(lineAt(lines, line)) + 1
		if charCount > 0 && charCount+lineLen > maxCharsPerSub {
			out = append(out, Span{StartLine: start, EndLine: line - 1, NodeType: span.NodeType})
			start = line
			charCount = 0
		}
		charCount += lineLen
		_ = lineStart
	}
	out = append(out, Span{StartLine: start, EndLine: span.EndLine, NodeType: span.NodeType})
	return out
}

// EstimateTokens approximates token count as ceil(len/4) (spec 4.A).
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

func fixedWindows(totalLines, windowSize int) []Span {
	if totalLines == 0 || windowSize <= 0 {
		return nil
	}
	var out []Span
	for start := 1; start <= totalLines; start += windowSize {
		end := start + windowSize - 1
		if end > totalLines {
			end = totalLines
		}
		out = append(out, Span{StartLine: start, EndLine: end})
	}
	return out
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func lineAt(lines []string, n int) string {
	if n < 1 || n > len(lines) {
		return ""
	}
	return lines[n-1]
}

// joinLines returns the 1-indexed inclusive [start, end] slice of lines
// rejoined with "\n".
func joinLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
