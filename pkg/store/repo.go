package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/complyance/auditor/pkg/model"
)

// GetRepo fetches a repo by ID.
func (s *Store) GetRepo(ctx context.Context, id string) (*model.Repo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, installation_id, github_id, owner, name, default_branch,
		       last_commit_sha, indexed_file_count, total_chunks, created_at, updated_at
		FROM repos WHERE id = $1`, id)
	return scanRepo(row)
}

// GetRepoByOwnerName fetches a repo by its (owner, name) natural key.
func (s *Store) GetRepoByOwnerName(ctx context.Context, owner, name string) (*model.Repo, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, installation_id, github_id, owner, name, default_branch,
		       last_commit_sha, indexed_file_count, total_chunks, created_at, updated_at
		FROM repos WHERE owner = $1 AND name = $2`, owner, name)
	return scanRepo(row)
}

func scanRepo(row pgx.Row) (*model.Repo, error) {
	var r model.Repo
	err := row.Scan(&r.ID, &r.InstallationID, &r.GitHubID, &r.Owner, &r.Name, &r.DefaultBranch,
		&r.LastCommitSHA, &r.IndexedFileCount, &r.TotalChunks, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning repo: %w", err)
	}
	return &r, nil
}

// UpsertRepo inserts a repo or updates it by the (owner, name) natural key,
// returning the row (with its assigned ID on first insert).
func (s *Store) UpsertRepo(ctx context.Context, r *model.Repo) (*model.Repo, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO repos (installation_id, github_id, owner, name, default_branch)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner, name) DO UPDATE SET
			installation_id = EXCLUDED.installation_id,
			github_id = EXCLUDED.github_id,
			default_branch = EXCLUDED.default_branch,
			updated_at = now()
		RETURNING id, installation_id, github_id, owner, name, default_branch,
		          last_commit_sha, indexed_file_count, total_chunks, created_at, updated_at`,
		r.InstallationID, r.GitHubID, r.Owner, r.Name, r.DefaultBranch)
	return scanRepo(row)
}

// UpdateRepoIndexStats updates the bookkeeping fields set after a full
// index pass (spec 4.D step 6): last_commit_sha, indexed_file_count,
// total_chunks.
func (s *Store) UpdateRepoIndexStats(ctx context.Context, repoID, lastCommitSHA string, indexedFileCount, totalChunks int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE repos
		SET last_commit_sha = $2, indexed_file_count = $3, total_chunks = $4, updated_at = now()
		WHERE id = $1`, repoID, lastCommitSHA, indexedFileCount, totalChunks)
	if err != nil {
		return fmt.Errorf("updating repo index stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
