package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/complyance/auditor/pkg/model"
)

func result(verdict model.Verdict, confidence float64) investigatorResult {
	return investigatorResult{Verdict: verdict, Confidence: confidence}
}

func TestAggregateCaseVerdict_AnyMissingForcesNonCompliant(t *testing.T) {
	v := aggregateCaseVerdict([]investigatorResult{
		result(model.VerdictCompliant, 0.9),
		result(model.VerdictNonCompliant, 0.8),
	})
	assert.Equal(t, model.VerdictNonCompliant, v.Verdict)
	assert.Equal(t, 2, v.EvidenceCount)
	assert.InDelta(t, 0.85, v.Confidence, 0.001)
}

func TestAggregateCaseVerdict_AllImplementedIsCompliant(t *testing.T) {
	v := aggregateCaseVerdict([]investigatorResult{
		result(model.VerdictCompliant, 1.0),
		result(model.VerdictCompliant, 0.6),
	})
	assert.Equal(t, model.VerdictCompliant, v.Verdict)
	assert.InDelta(t, 0.8, v.Confidence, 0.001)
}

func TestAggregateCaseVerdict_PartialOtherwise(t *testing.T) {
	v := aggregateCaseVerdict([]investigatorResult{
		result(model.VerdictCompliant, 0.9),
		result(model.VerdictPartial, 0.5),
	})
	assert.Equal(t, model.VerdictPartial, v.Verdict)
}

func TestAggregateCaseVerdict_UnclearCountsAsMissing(t *testing.T) {
	v := aggregateCaseVerdict([]investigatorResult{
		result(model.VerdictCompliant, 0.9),
		result(model.VerdictUnclear, 0.4),
	})
	assert.Equal(t, model.VerdictNonCompliant, v.Verdict)
}

func TestAggregateCaseVerdict_NoEvidenceIsUnclear(t *testing.T) {
	v := aggregateCaseVerdict(nil)
	assert.Equal(t, model.VerdictUnclear, v.Verdict)
	assert.Equal(t, 0, v.EvidenceCount)
}
