package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/goleads/internal/domain"
)

// contactSeparator joins phone/email sets into a single text column.
const contactSeparator = ","

// LeadRepository persists accepted leads. Records are append-only; nothing
// ever mutates a stored lead apart from the notified flag.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// leadRow is the database shape of a lead.
type leadRow struct {
	ID        string `db:"id"`
	Source    string `db:"source"`
	Text      string `db:"text"`
	SourceURL string `db:"source_url"`
	Phones    string `db:"phones"`
	Emails    string `db:"emails"`
	Notified  bool   `db:"notified"`
	CreatedAt int64  `db:"created_at"`
}

func (r leadRow) toDomain() domain.Lead {
	return domain.Lead{
		ID:        r.ID,
		Source:    r.Source,
		Text:      r.Text,
		SourceURL: r.SourceURL,
		Phones:    splitContacts(r.Phones),
		Emails:    splitContacts(r.Emails),
		CreatedAt: time.Unix(r.CreatedAt, 0).UTC(),
		Notified:  r.Notified,
	}
}

// Save assigns a fresh id and creation timestamp to the candidate, appends
// it durably and returns the fully populated lead.
func (r *LeadRepository) Save(ctx context.Context, c domain.LeadCandidate) (*domain.Lead, error) {
	lead := domain.Lead{
		ID:        uuid.NewString(),
		Source:    c.Source,
		Text:      c.Text,
		SourceURL: c.SourceURL,
		Phones:    c.Phones,
		Emails:    c.Emails,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	query := r.db.Rebind(`
		INSERT INTO leads (id, source, text, source_url, phones, emails, notified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(
		ctx, query,
		lead.ID, lead.Source, lead.Text, lead.SourceURL,
		joinContacts(lead.Phones), joinContacts(lead.Emails),
		false, lead.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}

	return &lead, nil
}

// MarkNotified records that the lead's notification was delivered.
func (r *LeadRepository) MarkNotified(ctx context.Context, id string) error {
	query := r.db.Rebind(`UPDATE leads SET notified = ? WHERE id = ?`)

	if _, err := r.db.ExecContext(ctx, query, true, id); err != nil {
		return fmt.Errorf("failed to mark lead notified: %w", err)
	}

	return nil
}

// Recent returns up to limit leads, newest first.
func (r *LeadRepository) Recent(ctx context.Context, limit int) ([]domain.Lead, error) {
	query := r.db.Rebind(`
		SELECT id, source, text, source_url, phones, emails, notified, created_at
		FROM leads
		ORDER BY created_at DESC, id
		LIMIT ?
	`)

	var rows []leadRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	leads := make([]domain.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, row.toDomain())
	}

	return leads, nil
}

// Count returns the total number of stored leads.
func (r *LeadRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM leads`); err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}

func joinContacts(values []string) string {
	return strings.Join(values, contactSeparator)
}

func splitContacts(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, contactSeparator)
}
