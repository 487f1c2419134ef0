package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProposalStatus string

const (
	ProposalPendingManager  ProposalStatus = "PENDING_MANAGER"
	ProposalPendingCustomer ProposalStatus = "PENDING_CUSTOMER"
	ProposalApproved        ProposalStatus = "APPROVED"
	ProposalRejected        ProposalStatus = "REJECTED"
)

// IsTerminal reports whether the proposal needs no further action.
func (s ProposalStatus) IsTerminal() bool {
	return s == ProposalApproved || s == ProposalRejected
}

// Proposal is extra work discovered mid-task. It runs a two-stage approval:
// staff proposes, a manager attaches a price and forwards it, the customer
// gives the final answer.
type Proposal struct {
	BaseUUIDModel
	TaskID      uuid.UUID        `gorm:"type:uuid;index;not null"              json:"taskId"`
	OrgID       uuid.UUID        `gorm:"type:uuid;index;not null"              json:"orgId"`
	Description string           `gorm:"type:text;not null"                    json:"description"`
	Price       *decimal.Decimal `gorm:"type:numeric(12,2)"                    json:"price,omitempty"`
	Status      ProposalStatus   `gorm:"type:text;default:PENDING_MANAGER;index" json:"status"`
	CreatedBy   uuid.UUID        `gorm:"type:uuid"                             json:"createdBy"`
}
