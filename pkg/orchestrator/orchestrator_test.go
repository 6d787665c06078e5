package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyance/auditor/pkg/adjudicate"
	"github.com/complyance/auditor/pkg/model"
	"github.com/complyance/auditor/pkg/provider/providertest"
	"github.com/complyance/auditor/pkg/remediate"
	"github.com/complyance/auditor/pkg/retrieval"
	"github.com/complyance/auditor/pkg/store"
)

// fakeStore is a minimal in-memory stand-in for pkg/store.Store, covering
// exactly the orchestrator.Store and remediate.TicketStore surface.
type fakeStore struct {
	mu         sync.Mutex
	cases      map[string]*model.Case
	regChunks  map[string][]*model.RegulationChunk
	codeChunks map[string]*model.CodeChunk
	findings   []*model.Finding
	tickets    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cases:      map[string]*model.Case{},
		regChunks:  map[string][]*model.RegulationChunk{},
		codeChunks: map[string]*model.CodeChunk{},
		tickets:    map[string]string{},
	}
}

func (f *fakeStore) seedCase(c *model.Case) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[c.ID] = c
}

func (f *fakeStore) GetCase(_ context.Context, id string) (*model.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) StartCase(ctx context.Context, caseID string) (*model.Case, error) {
	f.mu.Lock()
	c := f.cases[caseID]
	c.Status = model.CaseStatusRunning
	f.mu.Unlock()
	return f.GetCase(ctx, caseID)
}

func (f *fakeStore) ResumeCase(ctx context.Context, caseID string) (*model.Case, error) {
	f.mu.Lock()
	c := f.cases[caseID]
	c.Status = model.CaseStatusRunning
	f.mu.Unlock()
	return f.GetCase(ctx, caseID)
}

func (f *fakeStore) AdvanceCaseStep(ctx context.Context, caseID string, completedStep model.CaseStep, result map[string]any, nextStep model.CaseStep, status model.CaseStatus) (*model.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cases[caseID]

	c.StepsCompleted = append(append([]model.CaseStep{}, c.StepsCompleted...), completedStep)
	pending := make([]model.CaseStep, 0, len(c.StepsPending))
	for _, s := range c.StepsPending {
		if s != completedStep && s != nextStep {
			pending = append(pending, s)
		}
	}
	if nextStep != "" {
		pending = append(pending, nextStep)
	}
	c.StepsPending = pending
	c.CurrentStep = nextStep
	c.Status = status
	if c.StepResults == nil {
		c.StepResults = map[model.CaseStep]map[string]any{}
	}
	c.StepResults[completedStep] = result

	cp := *c
	return &cp, nil
}

func (f *fakeStore) SetCaseWaitingApproval(_ context.Context, caseID string, result map[string]any) (*model.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cases[caseID]
	c.StepsCompleted = append(append([]model.CaseStep{}, c.StepsCompleted...), model.StepRemediator)
	c.StepsPending = nil
	c.CurrentStep = ""
	c.Status = model.CaseStatusWaitingApproval
	c.RequiresApproval = true
	if c.StepResults == nil {
		c.StepResults = map[model.CaseStep]map[string]any{}
	}
	c.StepResults[model.StepRemediator] = result
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ResolveCaseApproval(_ context.Context, caseID string, decision model.UserDecision, ticketIDs []string) (*model.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cases[caseID]
	if c.Status != model.CaseStatusWaitingApproval {
		return nil, store.ErrNotFound
	}
	c.Status = model.CaseStatusCompleted
	c.UserDecision = decision
	c.TicketIDs = ticketIDs
	cp := *c
	return &cp, nil
}

func (f *fakeStore) FailCase(_ context.Context, caseID, errMsg string) (*model.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cases[caseID]
	c.Status = model.CaseStatusFailed
	c.ErrorMessage = errMsg
	cp := *c
	return &cp, nil
}

func (f *fakeStore) RequestCaseCancel(_ context.Context, caseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases[caseID].CancelRequested = true
	return nil
}

func (f *fakeStore) RegulationChunksByRule(_ context.Context, ruleID string) ([]*model.RegulationChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regChunks[ruleID], nil
}

func (f *fakeStore) GetChunkByID(_ context.Context, id string) (*model.CodeChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codeChunks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) CreateFinding(_ context.Context, fnd *model.Finding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fnd.ID = "finding-1"
	f.findings = append(f.findings, fnd)
	return nil
}

func (f *fakeStore) FindingsByCase(_ context.Context, caseID string) ([]*model.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Finding
	for _, fnd := range f.findings {
		if fnd.CaseID == caseID {
			out = append(out, fnd)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTicketMapping(_ context.Context, caseID, findingID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tickets[caseID+":"+findingID]
	if !ok {
		return "", store.ErrNotFound
	}
	return id, nil
}

func (f *fakeStore) CreateTicketMapping(_ context.Context, caseID, findingID, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := caseID + ":" + findingID
	if _, exists := f.tickets[key]; !exists {
		f.tickets[key] = ticketID
	}
	return nil
}

type fakeRetrievalStore struct {
	hits []store.SimilarChunk
}

func (s *fakeRetrievalStore) SearchSimilar(_ context.Context, _ []float32, _ string, _ int) ([]store.SimilarChunk, error) {
	return s.hits, nil
}

type fakeLog struct {
	mu       sync.Mutex
	messages []string
}

func (l *fakeLog) Append(_ context.Context, _, agent, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, agent+": "+message)
}

func buildOrchestrator(t *testing.T, fs *fakeStore, llmResponse string) *Orchestrator {
	t.Helper()
	retriever := retrieval.New(&fakeRetrievalStore{hits: []store.SimilarChunk{
		{Chunk: fs.codeChunks["chunk-1"], Distance: 0.1, Similarity: 0.9},
	}}, 0.7)
	adj := adjudicate.New(providertest.NewStubLLMProvider(llmResponse), nil)
	rem := remediate.New(providertest.NewStubTicketingSystem(), fs, nil, "COMPLIANCE")
	return New(fs, retriever, adj, rem, &fakeLog{}, 10)
}

func seedCaseFixture(fs *fakeStore) *model.Case {
	fs.regChunks["GDPR-1"] = []*model.RegulationChunk{
		{ID: "reg-1", RuleID: "GDPR-1", ChunkText: "Personal data must be retained for no longer than necessary.", Embedding: []float32{1, 0, 0}},
	}
	fs.codeChunks["chunk-1"] = &model.CodeChunk{ID: "chunk-1", RepoID: "repo-1", FilePath: "retention.py", StartLine: 1, EndLine: 10, ChunkText: "RETENTION_DAYS = 30"}

	c := &model.Case{
		ID:            "case-1",
		RepoID:        "repo-1",
		RegulationIDs: []string{"GDPR-1"},
		Status:        model.CaseStatusPending,
		StepsPending:  append([]model.CaseStep{}, model.AllSteps...),
	}
	fs.seedCase(c)
	return c
}

func TestOrchestrator_FullRunReachesWaitingApproval(t *testing.T) {
	fs := newFakeStore()
	c := seedCaseFixture(fs)
	o := buildOrchestrator(t, fs, `{"verdict":"non_compliant","severity":"high","severity_score":7,"confidence":0.8,"explanation":"retention too short","evidence":"line 1"}`)

	final, err := o.Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusWaitingApproval, final.Status)
	assert.True(t, final.RequiresApproval)
	assert.ElementsMatch(t, model.AllSteps, final.StepsCompleted)

	require.Len(t, fs.findings, 1)
	assert.Equal(t, model.VerdictNonCompliant, fs.findings[0].Verdict)
	assert.Equal(t, model.SeverityHigh, fs.findings[0].Severity)
}

func TestOrchestrator_ApprovalFilesTicketAndCompletesCase(t *testing.T) {
	fs := newFakeStore()
	c := seedCaseFixture(fs)
	o := buildOrchestrator(t, fs, `{"verdict":"non_compliant","severity":"high","severity_score":7,"confidence":0.8}`)

	_, err := o.Run(context.Background(), c)
	require.NoError(t, err)

	final, err := o.ResolveApproval(context.Background(), "case-1", model.DecisionApprove, nil)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, final.Status)
	require.Len(t, final.TicketIDs, 1)
}

func TestOrchestrator_DeclineCompletesWithoutTickets(t *testing.T) {
	fs := newFakeStore()
	c := seedCaseFixture(fs)
	o := buildOrchestrator(t, fs, `{"verdict":"partial","severity":"medium","severity_score":4,"confidence":0.6}`)

	_, err := o.Run(context.Background(), c)
	require.NoError(t, err)

	final, err := o.ResolveApproval(context.Background(), "case-1", model.DecisionDecline, nil)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, final.Status)
	assert.Empty(t, final.TicketIDs)
}

func TestOrchestrator_CancelRequestedAtBoundaryFailsCase(t *testing.T) {
	fs := newFakeStore()
	c := seedCaseFixture(fs)
	c.CancelRequested = true
	o := buildOrchestrator(t, fs, `{"verdict":"compliant","severity":"low","severity_score":1,"confidence":0.9}`)

	final, err := o.Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusFailed, final.Status)
	assert.Equal(t, "cancelled", final.ErrorMessage)
	assert.Empty(t, fs.findings)
}

func TestOrchestrator_ResumePicksUpFromStepsPending(t *testing.T) {
	fs := newFakeStore()
	c := seedCaseFixture(fs)
	c.Status = model.CaseStatusPaused
	c.StepsCompleted = []model.CaseStep{model.StepPlanner, model.StepNavigator}
	c.StepsPending = []model.CaseStep{model.StepInvestigator, model.StepJudge, model.StepRemediator}
	c.CurrentStep = model.StepInvestigator
	c.StepResults = map[model.CaseStep]map[string]any{
		model.StepNavigator: {"hits": []navigatorHit{{
			RuleID: "GDPR-1", RegulationChunkID: "reg-1", RuleText: "Personal data must be retained for no longer than necessary.",
			CodeChunkID: "chunk-1", FilePath: "retention.py", StartLine: 1, EndLine: 10, Similarity: 0.9,
		}}},
	}
	fs.seedCase(c)
	o := buildOrchestrator(t, fs, `{"verdict":"compliant","severity":"low","severity_score":1,"confidence":0.9}`)

	final, err := o.Resume(context.Background(), "case-1")
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusWaitingApproval, final.Status)
	assert.Contains(t, final.StepsCompleted, model.StepInvestigator)
	assert.Contains(t, final.StepsCompleted, model.StepJudge)
}

func TestOrchestrator_ResolveApprovalRejectsCaseNotWaitingApproval(t *testing.T) {
	fs := newFakeStore()
	c := seedCaseFixture(fs) // still pending, never run
	o := buildOrchestrator(t, fs, `{"verdict":"compliant","severity":"low","severity_score":1,"confidence":0.9}`)

	_, err := o.ResolveApproval(context.Background(), c.ID, model.DecisionApprove, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotWaitingApproval)
	assert.Empty(t, fs.tickets, "approving a non-waiting_approval case must never file a ticket")
}

func TestOrchestrator_ResolveApprovalRejectsAlreadyCompletedCase(t *testing.T) {
	fs := newFakeStore()
	c := seedCaseFixture(fs)
	o := buildOrchestrator(t, fs, `{"verdict":"non_compliant","severity":"high","severity_score":7,"confidence":0.8}`)

	_, err := o.Run(context.Background(), c)
	require.NoError(t, err)
	_, err = o.ResolveApproval(context.Background(), "case-1", model.DecisionApprove, nil)
	require.NoError(t, err)

	_, err = o.ResolveApproval(context.Background(), "case-1", model.DecisionApprove, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotWaitingApproval)
}
