package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/complyance/auditor/pkg/dbconn"
	"github.com/complyance/auditor/pkg/model"
)

// newTestStore spins up a disposable Postgres container with the pgvector
// extension, applies migrations, and returns a Store against it.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("auditor_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := dbconn.NewClient(ctx, dbconn.Config{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		Database: "auditor_test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return New(client.Pool)
}

func repoFixture(owner, name string) *model.Repo {
	return &model.Repo{
		InstallationID: 1,
		GitHubID:       1,
		Owner:          owner,
		Name:           name,
		DefaultBranch:  "main",
	}
}

func findingFixture(caseID string) *model.Finding {
	return &model.Finding{
		CaseID:        caseID,
		RuleID:        "GDPR-5",
		FilePath:      "internal/auth/login.go",
		StartLine:     10,
		EndLine:       20,
		Verdict:       model.VerdictNonCompliant,
		Severity:      model.SeverityHigh,
		SeverityScore: 7.0,
	}
}

func TestStore_RepoUpsertIsIdempotentOnOwnerName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertRepo(ctx, repoFixture("acme", "widgets"))
	require.NoError(t, err)

	second, err := s.UpsertRepo(ctx, repoFixture("acme", "widgets"))
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
}

func TestStore_UpdateRepoIndexStats_UnknownRepoReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpdateRepoIndexStats(ctx, "00000000-0000-0000-0000-000000000000", "deadbeef", 1, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateCase_StartsWithFullStepSetPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	repo, err := s.UpsertRepo(ctx, repoFixture("acme", "gadgets"))
	require.NoError(t, err)

	c, err := s.CreateCase(ctx, repo.ID, []string{"GDPR-5"})
	require.NoError(t, err)
	require.Empty(t, c.StepsCompleted)
	require.ElementsMatch(t, model.AllSteps, c.StepsPending)

	c, err = s.StartCase(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, model.CaseStatusRunning, c.Status)
}

func TestStore_AdvanceCaseStep_MovesStepBetweenSets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	repo, err := s.UpsertRepo(ctx, repoFixture("acme", "movers"))
	require.NoError(t, err)
	c, err := s.CreateCase(ctx, repo.ID, []string{"GDPR-5"})
	require.NoError(t, err)
	_, err = s.StartCase(ctx, c.ID)
	require.NoError(t, err)

	c, err = s.AdvanceCaseStep(ctx, c.ID, model.StepPlanner,
		map[string]any{"intent": "check retention"}, model.StepNavigator, model.CaseStatusRunning)
	require.NoError(t, err)

	require.Contains(t, c.StepsCompleted, model.StepPlanner)
	require.Contains(t, c.StepsPending, model.StepNavigator)
	require.NotContains(t, c.StepsPending, model.StepPlanner)
	require.Equal(t, model.StepNavigator, c.CurrentStep)
	require.Equal(t, "check retention", c.StepResults[model.StepPlanner]["intent"])
}

func TestStore_TicketMapping_SecondCreateIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	repo, err := s.UpsertRepo(ctx, repoFixture("acme", "tickets"))
	require.NoError(t, err)
	c, err := s.CreateCase(ctx, repo.ID, []string{"SOX-1"})
	require.NoError(t, err)

	f := findingFixture(c.ID)
	require.NoError(t, s.CreateFinding(ctx, f))

	require.NoError(t, s.CreateTicketMapping(ctx, c.ID, f.ID, "TICK-1"))
	require.NoError(t, s.CreateTicketMapping(ctx, c.ID, f.ID, "TICK-2"))

	got, err := s.GetTicketMapping(ctx, c.ID, f.ID)
	require.NoError(t, err)
	require.Equal(t, "TICK-1", got)
}

func TestStore_AppendLog_ReadOrderMatchesAppendOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	repo, err := s.UpsertRepo(ctx, repoFixture("acme", "logs"))
	require.NoError(t, err)
	c, err := s.CreateCase(ctx, repo.ID, []string{"HIPAA-1"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.AppendLog(ctx, c.ID, "navigator", "step")
		require.NoError(t, err)
	}

	entries, err := s.ReadLogs(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		require.Equal(t, i, e.Index)
	}
}

func TestStore_UpsertBatch_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	repo, err := s.UpsertRepo(ctx, repoFixture("acme", "chunked"))
	require.NoError(t, err)

	chunk := &model.CodeChunk{
		RepoID:     repo.ID,
		FilePath:   "main.go",
		Language:   "go",
		StartLine:  1,
		EndLine:    10,
		ChunkText:  "func main() {}",
		FileHash:   "filehash1",
		ChunkHash:  "chunkhash1",
		DeltaType:  model.DeltaAdded,
		Embedding:  make([]float32, 1536),
	}

	require.NoError(t, s.UpsertBatch(ctx, []*model.CodeChunk{chunk}))
	firstID := chunk.ID

	chunk.ID = ""
	require.NoError(t, s.UpsertBatch(ctx, []*model.CodeChunk{chunk}))
	require.Equal(t, firstID, chunk.ID)

	stored, err := s.ChunksByFile(ctx, repo.ID, "main.go")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestStore_PruneRemoved_DeletesOnlyUnretained(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	repo, err := s.UpsertRepo(ctx, repoFixture("acme", "pruned"))
	require.NoError(t, err)

	keep := &model.CodeChunk{RepoID: repo.ID, FilePath: "a.go", ChunkText: "a", FileHash: "fa", ChunkHash: "keep", DeltaType: model.DeltaAdded}
	drop := &model.CodeChunk{RepoID: repo.ID, FilePath: "b.go", ChunkText: "b", FileHash: "fb", ChunkHash: "drop", DeltaType: model.DeltaAdded}
	require.NoError(t, s.UpsertBatch(ctx, []*model.CodeChunk{keep, drop}))

	deleted, err := s.PruneRemoved(ctx, repo.ID, []string{"keep"})
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	remaining, err := s.ChunksByFile(ctx, repo.ID, "b.go")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
