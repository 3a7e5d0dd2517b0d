package breach

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
)

// EvidenceKind discriminates evidence payloads
type EvidenceKind string

const (
	EvidencePropertySale      EvidenceKind = "property_sale"
	EvidenceContractViolation EvidenceKind = "contract_violation"
	EvidenceShowing           EvidenceKind = "showing"
)

// Evidence is one entry in a breach's evidence bundle. Implementations are
// closed to this package.
type Evidence interface {
	Kind() EvidenceKind
	Validate() error
	evidence()
}

// PropertySaleEvidence carries the public sale record that triggered detection
type PropertySaleEvidence struct {
	Record    records.SaleRecord `json:"record"`
	ScannedAt time.Time          `json:"scannedAt"`
}

func (PropertySaleEvidence) Kind() EvidenceKind { return EvidencePropertySale }
func (PropertySaleEvidence) evidence()          {}

func (e PropertySaleEvidence) Validate() error {
	if e.Record.PropertyAddress == "" {
		return invalidEvidence(EvidencePropertySale, "record.propertyAddress is required")
	}
	if e.Record.SaleDate.IsZero() {
		return invalidEvidence(EvidencePropertySale, "record.saleDate is required")
	}
	if e.Record.EstimatedLostCommission.IsNegative() {
		return invalidEvidence(EvidencePropertySale, "record.estimatedLostCommission cannot be negative")
	}
	return nil
}

// ContractViolationEvidence ties the sale to the contract window it fell inside
type ContractViolationEvidence struct {
	ContractID         uuid.UUID `json:"contractId"`
	RepresentationType string    `json:"representationType"`
	ContractStart      time.Time `json:"contractStart"`
	ContractEnd        time.Time `json:"contractEnd"`
	Narrative          string    `json:"narrative"`
}

func (ContractViolationEvidence) Kind() EvidenceKind { return EvidenceContractViolation }
func (ContractViolationEvidence) evidence()          {}

func (e ContractViolationEvidence) Validate() error {
	if e.ContractID == uuid.Nil {
		return invalidEvidence(EvidenceContractViolation, "contractId is required")
	}
	if !e.ContractStart.Before(e.ContractEnd) {
		return invalidEvidence(EvidenceContractViolation, "contractStart must be before contractEnd")
	}
	return nil
}

// ShowingRef summarizes a showing for evidence
type ShowingRef struct {
	ShowingID       uuid.UUID `json:"showingId"`
	PropertyAddress string    `json:"propertyAddress"`
	ScheduledDate   time.Time `json:"scheduledDate"`
	Status          string    `json:"status"`
}

// VisitRef summarizes a property visit for evidence
type VisitRef struct {
	VisitID         uuid.UUID `json:"visitId"`
	PropertyAddress string    `json:"propertyAddress"`
	VisitDate       time.Time `json:"visitDate"`
	RiskLevel       string    `json:"riskLevel"`
	AgentPresent    bool      `json:"agentPresent"`
}

// ShowingEvidence is the client's showing and visit history known at detection
type ShowingEvidence struct {
	Showings []ShowingRef `json:"showings"`
	Visits   []VisitRef   `json:"visits"`
}

func (ShowingEvidence) Kind() EvidenceKind { return EvidenceShowing }
func (ShowingEvidence) evidence()          {}

func (e ShowingEvidence) Validate() error {
	if len(e.Showings) == 0 && len(e.Visits) == 0 {
		return invalidEvidence(EvidenceShowing, "at least one showing or visit is required")
	}
	return nil
}

func invalidEvidence(kind EvidenceKind, msg string) error {
	return errors.NewValidationError("INVALID_EVIDENCE", fmt.Sprintf("%s evidence: %s", kind, msg))
}

// EvidenceList serializes as a JSON array of objects tagged with "kind"
type EvidenceList []Evidence

// Validate checks every entry; a bundle must contain a property_sale entry
// for public-records detections
func (l EvidenceList) Validate() error {
	if len(l) == 0 {
		return errors.NewValidationError("INVALID_EVIDENCE", "evidence is required")
	}
	for _, e := range l {
		if e == nil {
			return errors.NewValidationError("INVALID_EVIDENCE", "nil evidence entry")
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Sale returns the property sale entry if present
func (l EvidenceList) Sale() (PropertySaleEvidence, bool) {
	for _, e := range l {
		if s, ok := e.(PropertySaleEvidence); ok {
			return s, true
		}
	}
	return PropertySaleEvidence{}, false
}

type evidenceHeader struct {
	Kind EvidenceKind `json:"kind"`
}

func (l EvidenceList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for _, e := range l {
		var (
			raw []byte
			err error
		)
		switch v := e.(type) {
		case PropertySaleEvidence:
			raw, err = json.Marshal(struct {
				evidenceHeader
				PropertySaleEvidence
			}{evidenceHeader{v.Kind()}, v})
		case ContractViolationEvidence:
			raw, err = json.Marshal(struct {
				evidenceHeader
				ContractViolationEvidence
			}{evidenceHeader{v.Kind()}, v})
		case ShowingEvidence:
			raw, err = json.Marshal(struct {
				evidenceHeader
				ShowingEvidence
			}{evidenceHeader{v.Kind()}, v})
		default:
			return nil, fmt.Errorf("unsupported evidence type %T", e)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes and validates each entry by its kind
func (l *EvidenceList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("evidence must be an array: %w", err)
	}

	list := make(EvidenceList, 0, len(raws))
	for i, raw := range raws {
		var h evidenceHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			return fmt.Errorf("evidence[%d]: %w", i, err)
		}

		var e Evidence
		switch h.Kind {
		case EvidencePropertySale:
			var v PropertySaleEvidence
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("evidence[%d]: %w", i, err)
			}
			e = v
		case EvidenceContractViolation:
			var v ContractViolationEvidence
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("evidence[%d]: %w", i, err)
			}
			e = v
		case EvidenceShowing:
			var v ShowingEvidence
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("evidence[%d]: %w", i, err)
			}
			e = v
		default:
			return errors.NewValidationError("INVALID_EVIDENCE", fmt.Sprintf("evidence[%d]: unknown kind %q", i, h.Kind))
		}

		if err := e.Validate(); err != nil {
			return err
		}
		list = append(list, e)
	}
	*l = list
	return nil
}
