package adjudicate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/provider/providertest"
)

func chunkFixture() *model.CodeChunk {
	return &model.CodeChunk{FilePath: "retention.py", StartLine: 10, EndLine: 20, ChunkText: "RETENTION_YEARS = 5"}
}

func TestAdjudicate_WellFormedOutput(t *testing.T) {
	llm := providertest.NewStubLLMProvider(`{"verdict":"compliant","severity":"low","severity_score":1,"confidence":0.9,"explanation":"ok","evidence":"line 12"}`)
	a := New(llm, nil)

	res, err := a.Adjudicate(context.Background(), "Audit logs must be retained for 5 years", chunkFixture())
	require.NoError(t, err)
	assert.Equal(t, model.VerdictCompliant, res.Verdict)
	assert.Equal(t, model.SeverityLow, res.Severity)
	assert.Empty(t, res.RawPayload)
}

func TestAdjudicate_EmptyOutputCoercedToUnclear(t *testing.T) {
	llm := providertest.NewStubLLMProvider("")
	a := New(llm, nil)

	res, err := a.Adjudicate(context.Background(), "rule", chunkFixture())
	require.NoError(t, err)
	assert.Equal(t, model.VerdictUnclear, res.Verdict)
	assert.Equal(t, model.SeverityMedium, res.Severity)
	assert.Equal(t, 5.0, res.SeverityScore)
}

func TestAdjudicate_MalformedJSONCoerced(t *testing.T) {
	llm := providertest.NewStubLLMProvider("the code looks fine I guess")
	a := New(llm, nil)

	res, err := a.Adjudicate(context.Background(), "rule", chunkFixture())
	require.NoError(t, err)
	assert.Equal(t, model.VerdictUnclear, res.Verdict)
	assert.Equal(t, "the code looks fine I guess", res.RawPayload)
}

func TestAdjudicate_UnknownVerdictCoerced(t *testing.T) {
	llm := providertest.NewStubLLMProvider(`{"verdict":"sort_of","severity":"low","severity_score":1}`)
	a := New(llm, nil)

	res, err := a.Adjudicate(context.Background(), "rule", chunkFixture())
	require.NoError(t, err)
	assert.Equal(t, model.VerdictUnclear, res.Verdict)
}

func TestAdjudicate_SeverityScoreClampedToBand(t *testing.T) {
	llm := providertest.NewStubLLMProvider(`{"verdict":"non_compliant","severity":"low","severity_score":9.5,"confidence":0.5}`)
	a := New(llm, nil)

	res, err := a.Adjudicate(context.Background(), "rule", chunkFixture())
	require.NoError(t, err)
	lo, hi := model.SeverityBand(model.SeverityLow)
	assert.GreaterOrEqual(t, res.SeverityScore, lo)
	assert.Less(t, res.SeverityScore, hi)
}

func TestAdjudicate_ConfidenceClampedToUnitInterval(t *testing.T) {
	llm := providertest.NewStubLLMProvider(`{"verdict":"compliant","severity":"low","severity_score":1,"confidence":1.5}`)
	a := New(llm, nil)

	res, err := a.Adjudicate(context.Background(), "rule", chunkFixture())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Confidence)
}
