package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/querybuilder"
)

const breachColumns = `
	id, agent_id, client_id, contract_id, COALESCE(property_id, ''), property_address,
	breach_type, detection_method, detection_date, breach_date, evidence_data,
	risk_level, estimated_commission_loss, auto_detection_score, status,
	admin_reviewer_id, admin_notes, confirmation_date, agent_notified_date,
	resolution_date, resolution_outcome, requires_legal_action, description,
	created_at, updated_at`

// breachListColumns is breachColumns qualified for the contracts join,
// followed by the contract terms
const breachListColumns = `
	potential_breaches.id, potential_breaches.agent_id, potential_breaches.client_id,
	potential_breaches.contract_id, COALESCE(potential_breaches.property_id, ''),
	potential_breaches.property_address, potential_breaches.breach_type,
	potential_breaches.detection_method, potential_breaches.detection_date,
	potential_breaches.breach_date, potential_breaches.evidence_data, potential_breaches.risk_level,
	potential_breaches.estimated_commission_loss, potential_breaches.auto_detection_score,
	potential_breaches.status, potential_breaches.admin_reviewer_id, potential_breaches.admin_notes,
	potential_breaches.confirmation_date, potential_breaches.agent_notified_date,
	potential_breaches.resolution_date, potential_breaches.resolution_outcome,
	potential_breaches.requires_legal_action, potential_breaches.description,
	potential_breaches.created_at, potential_breaches.updated_at,
	contracts.client_name, contracts.representation_type, contracts.start_date, contracts.end_date`

// BreachRepository implements breach.Repository on PostgreSQL
type BreachRepository struct {
	db DBTX
}

// NewBreachRepository creates a new potential breach repository
func NewBreachRepository(db DBTX) *BreachRepository {
	return &BreachRepository{db: db}
}

var _ breach.Repository = (*BreachRepository)(nil)

// Create inserts a breach. The partial unique index on the sale key turns a
// concurrent duplicate into a no-op.
func (r *BreachRepository) Create(ctx context.Context, b *breach.PotentialBreach) (bool, error) {
	evidence, err := json.Marshal(b.Evidence)
	if err != nil {
		return false, fmt.Errorf("failed to marshal evidence: %w", err)
	}

	var propertyID *string
	if b.PropertyID != "" {
		propertyID = &b.PropertyID
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO potential_breaches (
			id, agent_id, client_id, contract_id, property_id, property_address,
			breach_type, detection_method, detection_date, breach_date, evidence_data,
			risk_level, estimated_commission_loss, auto_detection_score, status,
			admin_reviewer_id, admin_notes, confirmation_date, agent_notified_date,
			resolution_date, resolution_outcome, requires_legal_action, description,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)
		ON CONFLICT DO NOTHING
	`, b.ID, b.AgentID, b.ClientID, b.ContractID, propertyID, b.PropertyAddress,
		string(b.BreachType), string(b.DetectionMethod), b.DetectionDate, b.BreachDate, evidence,
		string(b.RiskLevel), b.EstimatedCommissionLoss, b.AutoDetectionScore, string(b.Status),
		b.AdminReviewerID, b.AdminNotes, b.ConfirmationDate, b.AgentNotifiedDate,
		b.ResolutionDate, b.ResolutionOutcome, b.RequiresLegalAction, b.Description,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if IsDuplicateKeyViolation(err) {
			return false, nil
		}
		return false, wrapError(err, "create breach")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BreachRepository) GetByID(ctx context.Context, id uuid.UUID) (*breach.PotentialBreach, error) {
	row := r.db.QueryRow(ctx, `SELECT `+breachColumns+` FROM potential_breaches WHERE id = $1`, id)
	b, err := scanBreach(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("breach")
	}
	if err != nil {
		return nil, wrapError(err, "get breach")
	}
	return b, nil
}

// List applies the scope in the WHERE clause so agents never load other
// agents' rows
func (r *BreachRepository) List(ctx context.Context, scope breach.Scope, filter breach.Filter) ([]*breach.ListItem, error) {
	const op = "list breaches"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	q := querybuilder.Project(breachListColumns).From("potential_breaches").
		Join("contracts", "contracts.id = potential_breaches.contract_id").
		WhereIf(!scope.IsAll(), "potential_breaches.agent_id", querybuilder.Equal, scope.AgentID())
	if filter.Status != nil {
		q.WhereEqual("potential_breaches.status", string(*filter.Status))
	}
	if filter.RiskLevel != nil {
		q.WhereEqual("potential_breaches.risk_level", string(*filter.RiskLevel))
	}
	query, args, err := q.OrderBy("potential_breaches.detection_date", querybuilder.Desc).
		OrderBy("potential_breaches.id", querybuilder.Asc).
		Limit(limit).
		Offset(filter.Offset).
		ToSQL()
	if err != nil {
		return nil, wrapError(err, op)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	out := []*breach.ListItem{}
	for rows.Next() {
		var (
			terms   breach.ContractTerms
			repType string
		)
		b, err := scanBreach(rows, &terms.ClientName, &repType, &terms.StartDate, &terms.EndDate)
		if err != nil {
			return nil, wrapError(err, op)
		}
		terms.RepresentationType = contract.RepresentationType(repType)
		out = append(out, &breach.ListItem{PotentialBreach: b, Contract: terms})
	}
	return out, wrapError(rows.Err(), op)
}

func (r *BreachRepository) ExistingKeys(ctx context.Context, contractID uuid.UUID) (map[breach.DedupKey]struct{}, error) {
	const op = "load breach keys"
	rows, err := r.db.Query(ctx, `
		SELECT property_address, breach_date
		FROM potential_breaches
		WHERE contract_id = $1 AND status <> 'dismissed' AND breach_date IS NOT NULL`, contractID)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	keys := map[breach.DedupKey]struct{}{}
	for rows.Next() {
		var (
			address  string
			saleDate time.Time
		)
		if err := rows.Scan(&address, &saleDate); err != nil {
			return nil, wrapError(err, op)
		}
		keys[breach.NewDedupKey(contractID, address, saleDate)] = struct{}{}
	}
	return keys, wrapError(rows.Err(), op)
}

// UpdateWithStatusCheck writes the review fields only while the stored
// status still equals expected
func (r *BreachRepository) UpdateWithStatusCheck(ctx context.Context, b *breach.PotentialBreach, expected breach.Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE potential_breaches
		SET status = $3,
		    admin_reviewer_id = $4,
		    admin_notes = $5,
		    confirmation_date = $6,
		    resolution_date = $7,
		    resolution_outcome = $8,
		    requires_legal_action = $9,
		    updated_at = $10
		WHERE id = $1 AND status = $2
	`, b.ID, string(expected), string(b.Status), b.AdminReviewerID, b.AdminNotes,
		b.ConfirmationDate, b.ResolutionDate, b.ResolutionOutcome, b.RequiresLegalAction, b.UpdatedAt)
	if err != nil {
		return false, wrapError(err, "update breach status")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *BreachRepository) MarkAgentNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE potential_breaches
		SET agent_notified_date = $2, updated_at = $2
		WHERE id = $1 AND agent_notified_date IS NULL`, id, at)
	if err != nil {
		return wrapError(err, "mark agent notified")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM potential_breaches WHERE id = $1)`, id).Scan(&exists); err != nil {
			return wrapError(err, "mark agent notified")
		}
		if !exists {
			return notFound("breach")
		}
	}
	return nil
}

func (r *BreachRepository) ListUnnotifiedConfirmed(ctx context.Context, confirmedBefore time.Time, limit int) ([]*breach.PotentialBreach, error) {
	const op = "list unnotified breaches"
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+breachColumns+` FROM potential_breaches
		WHERE status = 'confirmed' AND agent_notified_date IS NULL
		  AND confirmation_date <= $1
		ORDER BY confirmation_date ASC
		LIMIT $2`, confirmedBefore, limit)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	out := []*breach.PotentialBreach{}
	for rows.Next() {
		b, err := scanBreach(rows)
		if err != nil {
			return nil, wrapError(err, op)
		}
		out = append(out, b)
	}
	return out, wrapError(rows.Err(), op)
}

// Stats aggregates in one pass so the per-status counts always sum to the total
func (r *BreachRepository) Stats(ctx context.Context, scope breach.Scope) (*breach.Stats, error) {
	var (
		s    breach.Stats
		loss values.Money
	)
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'investigating'),
			COUNT(*) FILTER (WHERE status = 'confirmed'),
			COUNT(*) FILTER (WHERE status = 'dismissed'),
			COUNT(*) FILTER (WHERE risk_level = 'high'),
			COALESCE(SUM(estimated_commission_loss) FILTER (WHERE status <> 'dismissed'), 0)
		FROM potential_breaches
		WHERE ($1 = '' OR agent_id = $1)`, scope.AgentID()).Scan(
		&s.TotalBreaches, &s.PendingBreaches, &s.InvestigatingBreaches,
		&s.ConfirmedBreaches, &s.DismissedBreaches, &s.HighRiskBreaches, &loss)
	if err != nil {
		return nil, wrapError(err, "breach stats")
	}
	s.TotalCommissionLoss = loss
	return &s, nil
}

// scanBreach reads breachColumns, then any extra trailing columns into extra
func scanBreach(row pgx.Row, extra ...any) (*breach.PotentialBreach, error) {
	var (
		b                                breach.PotentialBreach
		breachType, method, risk, status string
		evidence                         []byte
	)
	dest := []any{
		&b.ID, &b.AgentID, &b.ClientID, &b.ContractID, &b.PropertyID, &b.PropertyAddress,
		&breachType, &method, &b.DetectionDate, &b.BreachDate, &evidence,
		&risk, &b.EstimatedCommissionLoss, &b.AutoDetectionScore, &status,
		&b.AdminReviewerID, &b.AdminNotes, &b.ConfirmationDate, &b.AgentNotifiedDate,
		&b.ResolutionDate, &b.ResolutionOutcome, &b.RequiresLegalAction, &b.Description,
		&b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	b.BreachType = breach.Type(breachType)
	b.DetectionMethod = breach.DetectionMethod(method)
	b.RiskLevel = breach.RiskLevel(risk)
	b.Status = breach.Status(status)

	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &b.Evidence); err != nil {
			return nil, fmt.Errorf("failed to decode evidence for breach %s: %w", b.ID, err)
		}
	}
	return &b, nil
}
