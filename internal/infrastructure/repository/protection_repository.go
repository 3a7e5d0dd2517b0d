package repository

import (
	"context"

	"github.com/davidleathers/commission-protection-backend/internal/domain/protection"
)

// ProtectionRepository implements protection.Repository on PostgreSQL
type ProtectionRepository struct {
	db DBTX
}

// NewProtectionRepository creates a new commission protection repository
func NewProtectionRepository(db DBTX) *ProtectionRepository {
	return &ProtectionRepository{db: db}
}

var _ protection.Repository = (*ProtectionRepository)(nil)

func (r *ProtectionRepository) Create(ctx context.Context, p *protection.CommissionProtection) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO commission_protections (
			id, agent_id, client_id, property_address, protection_type, evidence_type,
			status, protected_amount, expiration_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.AgentID, p.ClientID, p.PropertyAddress, string(p.ProtectionType), p.EvidenceType,
		string(p.Status), p.ProtectedAmount, p.ExpirationDate, p.CreatedAt, p.UpdatedAt)
	return wrapError(err, "create commission protection")
}

func (r *ProtectionRepository) ListByAgent(ctx context.Context, agentID string) ([]*protection.CommissionProtection, error) {
	const op = "list commission protections"
	rows, err := r.db.Query(ctx, `
		SELECT id, agent_id, client_id, property_address, protection_type, evidence_type,
		       status, protected_amount, expiration_date, created_at, updated_at
		FROM commission_protections
		WHERE agent_id = $1
		ORDER BY expiration_date DESC`, agentID)
	if err != nil {
		return nil, wrapError(err, op)
	}
	defer rows.Close()

	out := []*protection.CommissionProtection{}
	for rows.Next() {
		var (
			p           protection.CommissionProtection
			typ, status string
		)
		if err := rows.Scan(
			&p.ID, &p.AgentID, &p.ClientID, &p.PropertyAddress, &typ, &p.EvidenceType,
			&status, &p.ProtectedAmount, &p.ExpirationDate, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, wrapError(err, op)
		}
		p.ProtectionType = protection.Type(typ)
		p.Status = protection.Status(status)
		out = append(out, &p)
	}
	return out, wrapError(rows.Err(), op)
}
