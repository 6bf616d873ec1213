package model

import (
	"time"
)

// MatchMethod labels which rule produced a match.
type MatchMethod string

const (
	MethodManual       MatchMethod = "manual"
	MethodExact        MatchMethod = "exact"
	MethodFuzzy        MatchMethod = "fuzzy"
	MethodFuzzyParent  MatchMethod = "fuzzy_parent"
	MethodFuzzyContact MatchMethod = "fuzzy_contact"
	MethodParent       MatchMethod = "parent"
	MethodContact      MatchMethod = "contact"
)

// AllMethods lists every match method in precedence order.
var AllMethods = []MatchMethod{
	MethodManual,
	MethodExact,
	MethodFuzzy,
	MethodFuzzyParent,
	MethodFuzzyContact,
	MethodParent,
	MethodContact,
}

// MatchRecord is one qualifying cross-region account pair. Each unordered
// pair appears at most once; Account1 is the account enumerated first.
type MatchRecord struct {
	Account1ID     string      `json:"account_1_id"`
	Account1Name   string      `json:"account_1_name"`
	Account1Region string      `json:"account_1_region"`
	Account2ID     string      `json:"account_2_id"`
	Account2Name   string      `json:"account_2_name"`
	Account2Region string      `json:"account_2_region"`
	Confidence     float64     `json:"confidence_score"`
	Method         MatchMethod `json:"linking_method"`
	MatchedAt      time.Time   `json:"matched_at"`
}

// MasterAccount is the consolidated identity of one customer across regions.
type MasterAccount struct {
	ID                 string    `json:"master_account_id"`
	Name               string    `json:"master_account_name"`
	RegionalAccountIDs []string  `json:"regional_account_ids"`
	Regions            []string  `json:"regions"`
	TotalRevenue       float64   `json:"total_revenue_usd"`
	AccountCount       int       `json:"account_count"`
	PrimaryRegion      string    `json:"primary_region"`
	CreatedAt          time.Time `json:"created_at"`
}
