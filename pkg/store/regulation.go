package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/complyance/auditor/pkg/model"
)

// UpsertRegulationChunk inserts or updates a regulation chunk keyed by
// (rule_id, chunk_index).
func (s *Store) UpsertRegulationChunk(ctx context.Context, c *model.RegulationChunk) error {
	metadata, err := json.Marshal(orEmptyMap(c.Metadata))
	if err != nil {
		return fmt.Errorf("marshaling regulation metadata: %w", err)
	}

	var embedding *pgvector.Vector
	if c.Embedding != nil {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO regulation_chunks (rule_id, rule_section, chunk_text, chunk_index, chunk_hash, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (rule_id, chunk_index) DO UPDATE SET
			chunk_text = EXCLUDED.chunk_text,
			chunk_hash = EXCLUDED.chunk_hash,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata
		RETURNING id`,
		c.RuleID, c.RuleSection, c.ChunkText, c.ChunkIndex, c.ChunkHash, embedding, metadata)
	return row.Scan(&c.ID)
}

// RegulationChunksByRule returns every chunk for a rule_id, ordered by
// chunk_index.
func (s *Store) RegulationChunksByRule(ctx context.Context, ruleID string) ([]*model.RegulationChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, rule_section, chunk_text, chunk_index, chunk_hash, embedding, metadata
		FROM regulation_chunks WHERE rule_id = $1 ORDER BY chunk_index ASC`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("listing regulation chunks: %w", err)
	}
	defer rows.Close()

	var out []*model.RegulationChunk
	for rows.Next() {
		c, err := scanRegulationChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanRegulationChunk(rows pgx.Rows) (*model.RegulationChunk, error) {
	var c model.RegulationChunk
	var embedding *pgvector.Vector
	var metadata []byte

	if err := rows.Scan(&c.ID, &c.RuleID, &c.RuleSection, &c.ChunkText, &c.ChunkIndex,
		&c.ChunkHash, &embedding, &metadata); err != nil {
		return nil, fmt.Errorf("scanning regulation chunk: %w", err)
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling regulation metadata: %w", err)
	}
	return &c, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
