package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/davidleathers/commission-protection-backend/internal/domain/showing"
)

const showingColumns = `
	id, agent_id, client_id, property_address, scheduled_date, status,
	checked_in_at, notes, created_at, updated_at`

// ShowingRepository implements showing.Repository on PostgreSQL
type ShowingRepository struct {
	db DBTX
}

// NewShowingRepository creates a new showing repository
func NewShowingRepository(db DBTX) *ShowingRepository {
	return &ShowingRepository{db: db}
}

var _ showing.Repository = (*ShowingRepository)(nil)

func (r *ShowingRepository) Create(ctx context.Context, s *showing.Showing) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO showings (
			id, agent_id, client_id, property_address, scheduled_date, status,
			checked_in_at, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.AgentID, s.ClientID, s.PropertyAddress, s.ScheduledDate, string(s.Status),
		s.CheckedInAt, s.Notes, s.CreatedAt, s.UpdatedAt)
	return wrapError(err, "create showing")
}

func (r *ShowingRepository) ListByAgent(ctx context.Context, agentID string) ([]*showing.Showing, error) {
	return r.list(ctx, "list showings", `
		SELECT `+showingColumns+` FROM showings
		WHERE agent_id = $1
		ORDER BY scheduled_date DESC`, agentID)
}

func (r *ShowingRepository) ListByClient(ctx context.Context, agentID, clientID string) ([]*showing.Showing, error) {
	return r.list(ctx, "list client showings", `
		SELECT `+showingColumns+` FROM showings
		WHERE agent_id = $1 AND client_id = $2
		ORDER BY scheduled_date DESC`, agentID, clientID)
}

func (r *ShowingRepository) ListOverdueScheduled(ctx context.Context, agentID string, cutoff time.Time) ([]*showing.Showing, error) {
	return r.list(ctx, "list overdue showings", `
		SELECT `+showingColumns+` FROM showings
		WHERE status = 'scheduled'
		  AND scheduled_date < $1
		  AND ($2 = '' OR agent_id = $2)
		ORDER BY scheduled_date ASC`, cutoff, agentID)
}

func (r *ShowingRepository) GetByID(ctx context.Context, id uuid.UUID) (*showing.Showing, error) {
	row := r.db.QueryRow(ctx, `SELECT `+showingColumns+` FROM showings WHERE id = $1`, id)
	s, err := scanShowing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("showing")
	}
	if err != nil {
		return nil, wrapError(err, "get showing")
	}
	return s, nil
}

// UpdateWithStatusCheck writes the mutable showing fields only while the row
// still holds expected. False means another writer moved it first.
func (r *ShowingRepository) UpdateWithStatusCheck(ctx context.Context, s *showing.Showing, expected showing.Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE showings
		SET status = $3, checked_in_at = $4, notes = $5, updated_at = $6
		WHERE id = $1 AND status = $2`,
		s.ID, string(expected), string(s.Status), s.CheckedInAt, s.Notes, s.UpdatedAt)
	if err != nil {
		return false, wrapError(err, "update showing")
	}
	return tag.RowsAffected() == 1, nil
}

// MarkNoShow is a compare-and-swap from scheduled. The companion visit is
// written in the same transaction, so a showing is never left no-show
// without its visit.
func (r *ShowingRepository) MarkNoShow(ctx context.Context, id uuid.UUID, visit *showing.PropertyVisit, now time.Time) (bool, error) {
	applied := false
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE showings
			SET status = 'no-show', updated_at = $2
			WHERE id = $1 AND status = 'scheduled'`, id, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return nil
		}
		if err := insertVisit(ctx, tx, visit); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, wrapError(err, "mark showing no-show")
	}
	return applied, nil
}

func (r *ShowingRepository) list(ctx context.Context, op, query string, args ...any) ([]*showing.Showing, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	out := []*showing.Showing{}
	for rows.Next() {
		s, err := scanShowing(rows)
		if err != nil {
			return nil, wrapError(err, op)
		}
		out = append(out, s)
	}
	return out, wrapError(rows.Err(), op)
}

func scanShowing(row pgx.Row) (*showing.Showing, error) {
	var (
		s      showing.Showing
		status string
	)
	if err := row.Scan(
		&s.ID, &s.AgentID, &s.ClientID, &s.PropertyAddress, &s.ScheduledDate, &status,
		&s.CheckedInAt, &s.Notes, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = showing.Status(status)
	return &s, nil
}

const visitColumns = `
	id, agent_id, client_id, showing_id, property_address, visit_date,
	was_scheduled, agent_present, risk_level, follow_up_required, notes, created_at`

// VisitRepository implements showing.VisitRepository on PostgreSQL
type VisitRepository struct {
	db DBTX
}

// NewVisitRepository creates a new property visit repository
func NewVisitRepository(db DBTX) *VisitRepository {
	return &VisitRepository{db: db}
}

var _ showing.VisitRepository = (*VisitRepository)(nil)

// insertVisit writes a visit. A second companion visit for the same showing
// is ignored.
func insertVisit(ctx context.Context, db DBTX, v *showing.PropertyVisit) error {
	_, err := db.Exec(ctx, `
		INSERT INTO property_visits (
			id, agent_id, client_id, showing_id, property_address, visit_date,
			was_scheduled, agent_present, risk_level, follow_up_required, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (showing_id) WHERE showing_id IS NOT NULL DO NOTHING
	`, v.ID, v.AgentID, v.ClientID, v.ShowingID, v.PropertyAddress, v.VisitDate,
		v.WasScheduled, v.AgentPresent, string(v.RiskLevel), v.FollowUpRequired, v.Notes, v.CreatedAt)
	return err
}

func (r *VisitRepository) ListByAgent(ctx context.Context, agentID string) ([]*showing.PropertyVisit, error) {
	return r.list(ctx, "list property visits", `
		SELECT `+visitColumns+` FROM property_visits
		WHERE agent_id = $1
		ORDER BY visit_date DESC`, agentID)
}

func (r *VisitRepository) ListByClient(ctx context.Context, agentID, clientID string) ([]*showing.PropertyVisit, error) {
	return r.list(ctx, "list client property visits", `
		SELECT `+visitColumns+` FROM property_visits
		WHERE agent_id = $1 AND client_id = $2
		ORDER BY visit_date DESC`, agentID, clientID)
}

func (r *VisitRepository) list(ctx context.Context, op, query string, args ...any) ([]*showing.PropertyVisit, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	out := []*showing.PropertyVisit{}
	for rows.Next() {
		var (
			v    showing.PropertyVisit
			risk string
		)
		if err := rows.Scan(
			&v.ID, &v.AgentID, &v.ClientID, &v.ShowingID, &v.PropertyAddress, &v.VisitDate,
			&v.WasScheduled, &v.AgentPresent, &risk, &v.FollowUpRequired, &v.Notes, &v.CreatedAt,
		); err != nil {
			return nil, wrapError(err, op)
		}
		v.RiskLevel = showing.RiskLevel(risk)
		out = append(out, &v)
	}
	return out, wrapError(rows.Err(), op)
}
