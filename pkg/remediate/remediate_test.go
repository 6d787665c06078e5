package remediate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyance/auditor/pkg/model"
)

func TestComposeTasks_OneTaskPerNonImplementedFinding(t *testing.T) {
	findings := []*model.Finding{
		{ID: "f-compliant", Verdict: model.VerdictCompliant, RuleID: "GDPR-1", FilePath: "a.py"},
		{ID: "f-partial", Verdict: model.VerdictPartial, RuleID: "GDPR-2", FilePath: "b.py"},
		{ID: "f-non-compliant", Verdict: model.VerdictNonCompliant, RuleID: "GDPR-3", FilePath: "c.py"},
		{ID: "f-unclear", Verdict: model.VerdictUnclear, RuleID: "GDPR-4", FilePath: "d.py"},
	}

	tasks := ComposeTasks(findings)
	assert.Len(t, tasks, 3, "compliant findings must not produce a task")

	byFinding := map[string]Task{}
	for _, task := range tasks {
		byFinding[task.FindingID] = task
	}

	_, hasCompliant := byFinding["f-compliant"]
	assert.False(t, hasCompliant)

	assert.Equal(t, "medium", byFinding["f-partial"].Priority)
	assert.Equal(t, "high", byFinding["f-non-compliant"].Priority)

	unclear, ok := byFinding["f-unclear"]
	require.True(t, ok, "unclear findings must still produce a remediation task")
	assert.Equal(t, "review", unclear.Priority)
	assert.NotEqual(t, unclear.Priority, byFinding["f-non-compliant"].Priority)
}

func TestStatusForVerdict_UnclearMapsToMissing(t *testing.T) {
	assert.Equal(t, "missing", StatusForVerdict(model.VerdictUnclear))
	assert.Equal(t, "missing", StatusForVerdict(model.VerdictNonCompliant))
	assert.Equal(t, "partial", StatusForVerdict(model.VerdictPartial))
	assert.Equal(t, "implemented", StatusForVerdict(model.VerdictCompliant))
}
