package model

import (
	"github.com/shopspring/decimal"
)

// Account is one regional CRM account row. Accounts are read once per run and
// never mutated by the linker.
type Account struct {
	ID              string            `json:"account_id"`
	Name            string            `json:"account_name"`
	Region          string            `json:"region"`
	AnnualRevenue   decimal.Decimal   `json:"annual_revenue"`
	ParentAccountID string            `json:"parent_account_id,omitempty"`
	Attributes      map[string]string `json:"attributes,omitempty"` // passthrough columns
}

// HasParent reports whether the account carries a parent account reference.
func (a Account) HasParent() bool {
	return a.ParentAccountID != ""
}

// Contact ties an email and/or phone number to an account. Contacts are only
// used as evidence for the contact-overlap signal.
type Contact struct {
	ID        string `json:"contact_id"`
	AccountID string `json:"account_id"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// ManualLinkages holds human-confirmed identity assertions keyed by account
// ID. Storage is directed but the assertion holds in both directions.
type ManualLinkages map[string]string

// Linked reports whether a manual linkage asserts that a and b are the same
// customer, in either direction.
func (m ManualLinkages) Linked(a, b string) bool {
	if len(m) == 0 || a == "" || b == "" {
		return false
	}
	if v, ok := m[a]; ok && v == b {
		return true
	}
	if v, ok := m[b]; ok && v == a {
		return true
	}
	return false
}
