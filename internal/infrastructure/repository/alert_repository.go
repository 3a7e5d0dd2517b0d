package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/alert"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/querybuilder"
)

// AlertRepository implements alert.Repository on PostgreSQL
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

var _ alert.Repository = (*AlertRepository)(nil)

func (r *AlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO alerts (id, agent_id, type, severity, title, message, reference_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.AgentID, string(a.Type), string(a.Severity), a.Title, a.Message, a.ReferenceID, a.Read, a.CreatedAt)
	return wrapError(err, "create alert")
}

func (r *AlertRepository) CreateOnce(ctx context.Context, a *alert.Alert) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO alerts (id, agent_id, type, severity, title, message, reference_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (type, reference_id) WHERE type = 'contract_expiring' DO NOTHING
	`, a.ID, a.AgentID, string(a.Type), string(a.Severity), a.Title, a.Message, a.ReferenceID, a.Read, a.CreatedAt)
	if err != nil {
		return false, wrapError(err, "create alert once")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *AlertRepository) ListByAgent(ctx context.Context, agentID string, unreadOnly bool) ([]*alert.Alert, error) {
	const op = "list alerts"
	q := querybuilder.Select("id", "agent_id", "type", "severity", "title", "message", "reference_id", "read", "created_at").
		From("alerts").
		WhereEqual("agent_id", agentID)
	if unreadOnly {
		q.WhereTrue("read", false)
	}
	query, args, err := q.OrderBy("created_at", querybuilder.Desc).Limit(500).ToSQL()
	if err != nil {
		return nil, wrapError(err, op)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	out := []*alert.Alert{}
	for rows.Next() {
		var (
			a             alert.Alert
			typ, severity string
		)
		if err := rows.Scan(&a.ID, &a.AgentID, &typ, &severity, &a.Title, &a.Message,
			&a.ReferenceID, &a.Read, &a.CreatedAt); err != nil {
			return nil, wrapError(err, op)
		}
		a.Type = alert.Type(typ)
		a.Severity = alert.Severity(severity)
		out = append(out, &a)
	}
	return out, wrapError(rows.Err(), op)
}

// MarkRead flags the alert read; alerts of other agents are reported as not found
func (r *AlertRepository) MarkRead(ctx context.Context, agentID string, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE alerts SET read = TRUE WHERE id = $1 AND agent_id = $2`, id, agentID)
	if err != nil {
		return wrapError(err, "mark alert read")
	}
	if tag.RowsAffected() == 0 {
		return notFound("alert")
	}
	return nil
}

func (r *AlertRepository) CountUnread(ctx context.Context, agentID string, typ alert.Type) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM alerts
		WHERE agent_id = $1 AND type = $2 AND NOT read`, agentID, string(typ)).Scan(&n)
	if err != nil {
		return 0, wrapError(err, "count unread alerts")
	}
	return n, nil
}
