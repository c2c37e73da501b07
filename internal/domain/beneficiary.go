package domain

import (
	"time"

	"github.com/google/uuid"
)

// BeneficiaryStatus is the review state of a withdrawal destination. The
// transition out of pending happens exactly once, by an admin decision.
type BeneficiaryStatus string

const (
	BeneficiaryPending  BeneficiaryStatus = "pending"
	BeneficiaryApproved BeneficiaryStatus = "approved"
	BeneficiaryRejected BeneficiaryStatus = "rejected"
)

// Beneficiary is a user's saved external bank account. Only approved
// beneficiaries may be referenced by a withdrawal request.
type Beneficiary struct {
	ID                uuid.UUID         `json:"id"`
	UserID            uuid.UUID         `json:"user_id"`
	AccountHolderName string            `json:"account_holder_name"`
	BankIdentifier    string            `json:"bank_identifier"`
	AccountNumber     string            `json:"account_number"`
	RoutingCode       string            `json:"routing_code"`
	Status            BeneficiaryStatus `json:"status"`
	IsDefault         bool              `json:"is_default"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// CreateBeneficiaryRequest is the DTO for a user registering a new withdrawal
// destination. New beneficiaries always start pending.
type CreateBeneficiaryRequest struct {
	AccountHolderName string `json:"account_holder_name"`
	BankIdentifier    string `json:"bank_identifier"`
	AccountNumber     string `json:"account_number"`
	RoutingCode       string `json:"routing_code"`
	IsDefault         bool   `json:"is_default"`
}
