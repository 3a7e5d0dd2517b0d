package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
)

const contractColumns = `
	id, agent_id, agent_display_name, agent_license, client_id, client_name,
	COALESCE(property_address, ''), representation_type, start_date, end_date,
	status, commission_rate, created_at, updated_at`

// ContractRepository implements contract.Repository on PostgreSQL
type ContractRepository struct {
	db DBTX
}

// NewContractRepository creates a new contract repository
func NewContractRepository(db DBTX) *ContractRepository {
	return &ContractRepository{db: db}
}

var _ contract.Repository = (*ContractRepository)(nil)

func (r *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	var rate decimal.NullDecimal
	if c.CommissionRate != nil {
		rate = decimal.NullDecimal{Decimal: *c.CommissionRate, Valid: true}
	}
	var address *string
	if c.PropertyAddress != "" {
		address = &c.PropertyAddress
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO contracts (
			id, agent_id, agent_display_name, agent_license, client_id, client_name,
			property_address, representation_type, start_date, end_date, status,
			commission_rate, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, c.ID, c.AgentID, c.AgentDisplayName, c.AgentLicense, c.ClientID, c.ClientName, address,
		string(c.RepresentationType), c.StartDate, c.EndDate, string(c.Status), rate,
		c.CreatedAt, c.UpdatedAt)
	return wrapError(err, "create contract")
}

func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	row := r.db.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("contract")
	}
	if err != nil {
		return nil, wrapError(err, "get contract")
	}
	return c, nil
}

func (r *ContractRepository) UpdateWithStatusCheck(ctx context.Context, c *contract.Contract, expected contract.Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE contracts
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`, c.ID, string(expected), string(c.Status), c.UpdatedAt)
	if err != nil {
		return false, wrapError(err, "update contract status")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ContractRepository) ListByAgent(ctx context.Context, agentID string) ([]*contract.Contract, error) {
	return r.list(ctx, "list contracts", `
		SELECT `+contractColumns+` FROM contracts
		WHERE agent_id = $1
		ORDER BY created_at DESC`, agentID)
}

func (r *ContractRepository) ListActive(ctx context.Context) ([]*contract.Contract, error) {
	return r.list(ctx, "list active contracts", `
		SELECT `+contractColumns+` FROM contracts
		WHERE status = 'active'
		ORDER BY end_date ASC`)
}

func (r *ContractRepository) FindActiveForClient(ctx context.Context, agentID, clientName string) (*contract.Contract, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+contractColumns+` FROM contracts
		WHERE agent_id = $1
		  AND status = 'active'
		  AND lower(regexp_replace(btrim(client_name), '\s+', ' ', 'g')) =
		      lower(regexp_replace(btrim($2), '\s+', ' ', 'g'))
		ORDER BY start_date DESC
		LIMIT 1`, agentID, clientName)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("contract")
	}
	if err != nil {
		return nil, wrapError(err, "find contract for client")
	}
	return c, nil
}

func (r *ContractRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE contracts
		SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND end_date < $1::date`, now.UTC())
	if err != nil {
		return 0, wrapError(err, "expire contracts")
	}
	return tag.RowsAffected(), nil
}

func (r *ContractRepository) list(ctx context.Context, op, query string, args ...any) ([]*contract.Contract, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	out := []*contract.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, wrapError(err, op)
		}
		out = append(out, c)
	}
	return out, wrapError(rows.Err(), op)
}

func scanContract(row pgx.Row) (*contract.Contract, error) {
	var (
		c       contract.Contract
		repType string
		status  string
		rate    decimal.NullDecimal
	)
	if err := row.Scan(
		&c.ID, &c.AgentID, &c.AgentDisplayName, &c.AgentLicense, &c.ClientID, &c.ClientName, &c.PropertyAddress,
		&repType, &c.StartDate, &c.EndDate, &status, &rate,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.RepresentationType = contract.RepresentationType(repType)
	c.Status = contract.Status(status)
	if rate.Valid {
		d := rate.Decimal
		c.CommissionRate = &d
	}
	return &c, nil
}
