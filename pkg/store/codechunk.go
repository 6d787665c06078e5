package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/complyance/auditor/pkg/model"
)

// UpsertBatch inserts or updates chunks keyed by chunk_hash (spec 4.C),
// atomically: all rows in the batch commit together or none do. On
// conflict the mutable fields (embedding, nl_summary, enrichment) are
// refreshed and the existing chunk_id is kept, satisfying P2 (idempotent
// upsert) and P3 (chunk_id stability across re-index passes).
func (s *Store) UpsertBatch(ctx context.Context, chunks []*model.CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		callLinks, err := json.Marshal(orEmpty(c.CallLinks))
		if err != nil {
			return fmt.Errorf("marshaling call_links: %w", err)
		}
		variables, err := json.Marshal(orEmpty(c.Variables))
		if err != nil {
			return fmt.Errorf("marshaling variables: %w", err)
		}
		configKeys, err := json.Marshal(orEmpty(c.ConfigKeys))
		if err != nil {
			return fmt.Errorf("marshaling config_keys: %w", err)
		}
		semanticTags, err := json.Marshal(orEmpty(c.SemanticTags))
		if err != nil {
			return fmt.Errorf("marshaling semantic_tags: %w", err)
		}

		var embedding *pgvector.Vector
		if c.Embedding != nil {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO code_chunks (
				repo_id, file_path, language, start_line, end_line, chunk_text,
				ast_node_type, file_hash, chunk_hash, embedding, nl_summary,
				call_links, variables, config_keys, semantic_tags,
				previous_hash, delta_type
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
			)
			ON CONFLICT (repo_id, chunk_hash) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				nl_summary = EXCLUDED.nl_summary,
				call_links = EXCLUDED.call_links,
				variables = EXCLUDED.variables,
				config_keys = EXCLUDED.config_keys,
				semantic_tags = EXCLUDED.semantic_tags,
				previous_hash = EXCLUDED.previous_hash,
				delta_type = EXCLUDED.delta_type,
				updated_at = now()
			RETURNING id`,
			c.RepoID, c.FilePath, c.Language, c.StartLine, c.EndLine, c.ChunkText,
			c.ASTNodeType, c.FileHash, c.ChunkHash, embedding, c.NLSummary,
			callLinks, variables, configKeys, semanticTags,
			c.PreviousHash, string(c.DeltaType))
		if err := row.Scan(&c.ID); err != nil {
			return fmt.Errorf("upserting chunk %s: %w", c.ChunkHash, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upsert batch: %w", err)
	}
	return nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// SimilarChunk pairs a stored chunk with its distance to the query vector.
type SimilarChunk struct {
	Chunk      *model.CodeChunk
	Distance   float64
	Similarity float64
}

// SearchSimilar runs a cosine-distance kNN search (spec 4.C, 4.F), scoped
// to repoID when non-empty, returning the top k rows ordered by ascending
// distance with a deterministic tie-break on (file_path, start_line) so
// ties resolve the same way every call.
func (s *Store) SearchSimilar(ctx context.Context, queryEmbedding []float32, repoID string, k int) ([]SimilarChunk, error) {
	qv := pgvector.NewVector(queryEmbedding)

	var rows pgx.Rows
	var err error
	if repoID != "" {
		rows, err = s.pool.Query(ctx, `
			SELECT id, repo_id, file_path, language, start_line, end_line, chunk_text,
			       ast_node_type, file_hash, chunk_hash, embedding, nl_summary,
			       call_links, variables, config_keys, semantic_tags,
			       previous_hash, delta_type, created_at, updated_at,
			       embedding <=> $1 AS distance
			FROM code_chunks
			WHERE repo_id = $2 AND embedding IS NOT NULL
			ORDER BY distance ASC, file_path ASC, start_line ASC
			LIMIT $3`, qv, repoID, k)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT id, repo_id, file_path, language, start_line, end_line, chunk_text,
			       ast_node_type, file_hash, chunk_hash, embedding, nl_summary,
			       call_links, variables, config_keys, semantic_tags,
			       previous_hash, delta_type, created_at, updated_at,
			       embedding <=> $1 AS distance
			FROM code_chunks
			WHERE embedding IS NOT NULL
			ORDER BY distance ASC, file_path ASC, start_line ASC
			LIMIT $2`, qv, k)
	}
	if err != nil {
		return nil, fmt.Errorf("searching similar chunks: %w", err)
	}
	defer rows.Close()

	var out []SimilarChunk
	for rows.Next() {
		c, distance, err := scanCodeChunkWithDistance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, SimilarChunk{Chunk: c, Distance: distance, Similarity: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading similar chunks: %w", err)
	}
	return out, nil
}

// PruneRemoved deletes chunks for repoID whose chunk_hash is not in
// retainedHashes (spec 4.C), to be called only after a full successful
// index pass. An empty retainedHashes set deletes every chunk for the repo.
func (s *Store) PruneRemoved(ctx context.Context, repoID string, retainedHashes []string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM code_chunks
		WHERE repo_id = $1 AND NOT (chunk_hash = ANY($2))`,
		repoID, retainedHashes)
	if err != nil {
		return 0, fmt.Errorf("pruning removed chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteChunksByHash removes specific chunk rows for repoID, named by
// hash. Unlike PruneRemoved (which deletes by exclusion across the whole
// repo), this targets exactly the rows delta classification marked
// removed for one file, leaving every other file's chunks untouched.
func (s *Store) DeleteChunksByHash(ctx context.Context, repoID string, chunkHashes []string) error {
	if len(chunkHashes) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		DELETE FROM code_chunks
		WHERE repo_id = $1 AND chunk_hash = ANY($2)`,
		repoID, chunkHashes)
	if err != nil {
		return fmt.Errorf("deleting removed chunks: %w", err)
	}
	return nil
}

// ChunksByFile returns the currently stored chunks for (repo_id, file_path),
// used by the indexer's delta-mode classification (spec 4.D).
func (s *Store) ChunksByFile(ctx context.Context, repoID, filePath string) ([]*model.CodeChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, repo_id, file_path, language, start_line, end_line, chunk_text,
		       ast_node_type, file_hash, chunk_hash, embedding, nl_summary,
		       call_links, variables, config_keys, semantic_tags,
		       previous_hash, delta_type, created_at, updated_at
		FROM code_chunks
		WHERE repo_id = $1 AND file_path = $2`, repoID, filePath)
	if err != nil {
		return nil, fmt.Errorf("listing chunks by file: %w", err)
	}
	defer rows.Close()

	var out []*model.CodeChunk
	for rows.Next() {
		c, err := scanCodeChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChunkByID fetches a single chunk by its stable chunk_id, used by the
// orchestrator's Investigator stage to fetch the full chunk text for a
// match the Navigator pass recorded only by ID and location.
func (s *Store) GetChunkByID(ctx context.Context, id string) (*model.CodeChunk, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, repo_id, file_path, language, start_line, end_line, chunk_text,
		       ast_node_type, file_hash, chunk_hash, embedding, nl_summary,
		       call_links, variables, config_keys, semantic_tags,
		       previous_hash, delta_type, created_at, updated_at
		FROM code_chunks WHERE id = $1`, id)

	var c model.CodeChunk
	var embedding *pgvector.Vector
	var callLinks, variables, configKeys, semanticTags []byte
	var deltaType string

	err := row.Scan(&c.ID, &c.RepoID, &c.FilePath, &c.Language, &c.StartLine, &c.EndLine, &c.ChunkText,
		&c.ASTNodeType, &c.FileHash, &c.ChunkHash, &embedding, &c.NLSummary,
		&callLinks, &variables, &configKeys, &semanticTags,
		&c.PreviousHash, &deltaType, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	c.DeltaType = model.DeltaType(deltaType)
	if err := json.Unmarshal(callLinks, &c.CallLinks); err != nil {
		return nil, fmt.Errorf("unmarshaling call_links: %w", err)
	}
	if err := json.Unmarshal(variables, &c.Variables); err != nil {
		return nil, fmt.Errorf("unmarshaling variables: %w", err)
	}
	if err := json.Unmarshal(configKeys, &c.ConfigKeys); err != nil {
		return nil, fmt.Errorf("unmarshaling config_keys: %w", err)
	}
	if err := json.Unmarshal(semanticTags, &c.SemanticTags); err != nil {
		return nil, fmt.Errorf("unmarshaling semantic_tags: %w", err)
	}
	return &c, nil
}

func scanCodeChunk(rows pgx.Rows) (*model.CodeChunk, error) {
	c, _, err := scanCodeChunkRow(rows, false)
	return c, err
}

func scanCodeChunkWithDistance(rows pgx.Rows) (*model.CodeChunk, float64, error) {
	return scanCodeChunkRow(rows, true)
}

func scanCodeChunkRow(rows pgx.Rows, withDistance bool) (*model.CodeChunk, float64, error) {
	var c model.CodeChunk
	var embedding *pgvector.Vector
	var callLinks, variables, configKeys, semanticTags []byte
	var deltaType string
	var distance float64

	scanArgs := []any{
		&c.ID, &c.RepoID, &c.FilePath, &c.Language, &c.StartLine, &c.EndLine, &c.ChunkText,
		&c.ASTNodeType, &c.FileHash, &c.ChunkHash, &embedding, &c.NLSummary,
		&callLinks, &variables, &configKeys, &semanticTags,
		&c.PreviousHash, &deltaType, &c.CreatedAt, &c.UpdatedAt,
	}
	if withDistance {
		scanArgs = append(scanArgs, &distance)
	}

	if err := rows.Scan(scanArgs...); err != nil {
		return nil, 0, fmt.Errorf("scanning code chunk: %w", err)
	}

	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	c.DeltaType = model.DeltaType(deltaType)
	if err := json.Unmarshal(callLinks, &c.CallLinks); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling call_links: %w", err)
	}
	if err := json.Unmarshal(variables, &c.Variables); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling variables: %w", err)
	}
	if err := json.Unmarshal(configKeys, &c.ConfigKeys); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling config_keys: %w", err)
	}
	if err := json.Unmarshal(semanticTags, &c.SemanticTags); err != nil {
		return nil, 0, fmt.Errorf("unmarshaling semantic_tags: %w", err)
	}

	return &c, distance, nil
}
