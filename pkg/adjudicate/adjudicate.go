// Package adjudicate is the Adjudicator (spec 4.G): a per-chunk LLM
// compliance verdict with schema validation and malformed-output
// coercion. Grounded on the teacher's scoring-agent/controller
// result-coercion pattern (parse-or-fallback rather than throwing on bad
// model output), generalized from tarsy's single numeric score to the
// fixed verdict/severity vocabulary this spec defines.
package adjudicate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/provider"
	"github.com/complyance/auditor/pkg/retry"
)

const (
	llmRetryAttempts = 3
	llmMaxTokens     = 512
	llmTemperature   = 0.0
)

// Result is the Adjudicator's structured output (spec 4.G).
type Result struct {
	Verdict       model.Verdict
	Severity      model.Severity
	SeverityScore float64
	Confidence    float64
	Explanation   string
	Evidence      string
	Remediation   string
	// RawPayload preserves the provider's raw text whenever the structured
	// fields above were coerced from malformed output, so the original
	// payload survives for audit (spec 4.G, §7 Semantic error class).
	RawPayload string
}

// Adjudicator produces a Result for one (rule, code chunk) pair.
type Adjudicator struct {
	llm     provider.LLMProvider
	limiter *rate.Limiter
}

// New creates an Adjudicator. limiter may be nil to skip rate limiting
// (used by tests).
func New(llm provider.LLMProvider, limiter *rate.Limiter) *Adjudicator {
	return &Adjudicator{llm: llm, limiter: limiter}
}

type rawResult struct {
	Verdict       string  `json:"verdict"`
	Severity      string  `json:"severity"`
	SeverityScore float64 `json:"severity_score"`
	Confidence    float64 `json:"confidence"`
	Explanation   string  `json:"explanation"`
	Evidence      string  `json:"evidence"`
	Remediation   string  `json:"remediation"`
}

var validVerdicts = map[model.Verdict]bool{
	model.VerdictCompliant:    true,
	model.VerdictNonCompliant: true,
	model.VerdictPartial:      true,
	model.VerdictUnclear:      true,
}

var validSeverities = map[model.Severity]bool{
	model.SeverityLow:      true,
	model.SeverityMedium:   true,
	model.SeverityHigh:     true,
	model.SeverityCritical: true,
}

// Adjudicate calls the LLM with ruleText and the chunk's text and returns
// a validated Result. The adjudicator never fabricates a file path or line
// number — those belong to the caller, copied verbatim from chunk (spec
// 4.G); Result carries only the verdict content.
func (a *Adjudicator) Adjudicate(ctx context.Context, ruleText string, chunk *model.CodeChunk) (*Result, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for LLM rate limit: %w", err)
		}
	}

	messages := []provider.Message{
		{Role: "system", Content: adjudicationSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Regulation text:\n%s\n\nCode chunk (%s lines %d-%d):\n%s",
			ruleText, chunk.FilePath, chunk.StartLine, chunk.EndLine, chunk.ChunkText)},
	}

	var raw string
	err := retry.Do(ctx, llmRetryAttempts, 0, func(ctx context.Context) error {
		s, err := a.llm.Complete(ctx, messages, llmTemperature, llmMaxTokens)
		if err != nil {
			return err
		}
		raw = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calling LLM for adjudication: %w", err)
	}

	return parse(raw), nil
}

const adjudicationSystemPrompt = `You are a compliance adjudicator. Given a regulation excerpt and a code ` +
	`chunk, decide whether the code satisfies the regulation. Respond with a single JSON object with keys: ` +
	`verdict (one of compliant, non_compliant, partial, unclear), severity (one of low, medium, high, critical), ` +
	`severity_score (number 0-10), confidence (number 0-1), explanation (string), evidence (string), ` +
	`remediation (string). Respond with JSON only.`

// parse extracts a Result from raw LLM text. Empty or unparseable output,
// or output using a verdict/severity outside the fixed vocabulary, is
// coerced to {verdict: unclear, severity: medium, severity_score: 5.0}
// with the raw payload preserved for audit (spec 4.G, §7 Semantic class:
// "coerced to unclear/unknown ... never retried").
func parse(raw string) *Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return coerced(raw)
	}

	var rr rawResult
	if err := json.Unmarshal([]byte(extractJSON(trimmed)), &rr); err != nil {
		return coerced(raw)
	}

	verdict := model.Verdict(rr.Verdict)
	severity := model.Severity(rr.Severity)
	if !validVerdicts[verdict] || !validSeverities[severity] {
		return coerced(raw)
	}

	score := clampToBand(severity, rr.SeverityScore)
	confidence := rr.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Result{
		Verdict:       verdict,
		Severity:      severity,
		SeverityScore: score,
		Confidence:    confidence,
		Explanation:   rr.Explanation,
		Evidence:      rr.Evidence,
		Remediation:   rr.Remediation,
	}
}

// coerced builds the fixed fallback result spec 4.G prescribes for
// malformed output, keeping the original text for audit.
func coerced(raw string) *Result {
	return &Result{
		Verdict:       model.VerdictUnclear,
		Severity:      model.SeverityMedium,
		SeverityScore: 5.0,
		Explanation:   raw,
		RawPayload:    raw,
	}
}

// clampToBand enforces P9 (severity-score/level consistency): a score
// outside the band its severity implies is clamped into that band rather
// than trusted verbatim, since the LLM's two fields can disagree.
func clampToBand(severity model.Severity, score float64) float64 {
	lo, hi := model.SeverityBand(severity)
	if score < lo {
		return lo
	}
	if score >= hi {
		// hi is exclusive except for critical's upper bound (10); nudge
		// just inside the band otherwise.
		if severity == model.SeverityCritical {
			return hi - 0.0001
		}
		return hi - 0.0001
	}
	return score
}

// extractJSON returns the substring between the first '{' and the
// matching last '}', tolerating a model that wraps its JSON in prose or a
// markdown code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
