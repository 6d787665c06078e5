package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// GetTicketMapping returns the ticket_id already created for (case_id,
// finding_id), or ErrNotFound if none exists yet.
func (s *Store) GetTicketMapping(ctx context.Context, caseID, findingID string) (string, error) {
	var ticketID string
	err := s.pool.QueryRow(ctx, `
		SELECT ticket_id FROM ticket_mappings WHERE case_id = $1 AND finding_id = $2`,
		caseID, findingID).Scan(&ticketID)
	if err == pgx.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up ticket mapping: %w", err)
	}
	return ticketID, nil
}

// CreateTicketMapping records the ticket_id created for (case_id,
// finding_id). A second insert for the same pair is discarded by ON
// CONFLICT DO NOTHING and returns no error, so the first ticket_id stays;
// callers read the stored value back with GetTicketMapping (spec 4.J, P7).
func (s *Store) CreateTicketMapping(ctx context.Context, caseID, findingID, ticketID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ticket_mappings (case_id, finding_id, ticket_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (case_id, finding_id) DO NOTHING`,
		caseID, findingID, ticketID)
	if err != nil {
		return fmt.Errorf("recording ticket mapping: %w", err)
	}
	return nil
}
