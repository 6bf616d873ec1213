package snapshot

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/account-linker/internal/model"
)

// Column aliases accepted for each account and contact field.
var (
	colAccountID = []string{"account_id", "id"}
	colName      = []string{"account_name", "name"}
	colRegion    = []string{"region"}
	colRevenue   = []string{"annual_revenue", "annual_revenue_usd"}
	colParent    = []string{"parent_account_id"}

	colContactID = []string{"contact_id", "id"}
	colEmail     = []string{"email", "email_address"}
	colPhone     = []string{"phone", "phone_number"}
)

// RowIssue describes an input row that could not be decoded.
type RowIssue struct {
	Row       int    `json:"row"` // 1-based data row
	AccountID string `json:"account_id,omitempty"`
	Reason    string `json:"reason"`
}

// DecodeAccounts maps Records onto Accounts. Rows whose revenue is present
// but not a non-negative number are rejected. Missing names and regions are
// left for the linker to report.
func DecodeAccounts(records []Record) ([]model.Account, []RowIssue) {
	known := make(map[string]bool)
	for _, cols := range [][]string{colAccountID, colName, colRegion, colRevenue, colParent} {
		for _, c := range cols {
			known[c] = true
		}
	}

	accounts := make([]model.Account, 0, len(records))
	var issues []RowIssue
	for i, rec := range records {
		acct := model.Account{
			ID:              rec.Get(colAccountID...),
			Name:            strings.TrimSpace(rec.Get(colName...)),
			Region:          rec.Get(colRegion...),
			ParentAccountID: rec.Get(colParent...),
		}

		if raw := rec.Get(colRevenue...); raw != "" {
			rev, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
			if err != nil {
				issues = append(issues, RowIssue{Row: i + 1, AccountID: acct.ID, Reason: "invalid annual_revenue " + strconv.Quote(raw)})
				continue
			}
			if rev.IsNegative() {
				issues = append(issues, RowIssue{Row: i + 1, AccountID: acct.ID, Reason: "negative annual_revenue " + strconv.Quote(raw)})
				continue
			}
			acct.AnnualRevenue = rev
		}

		for k, v := range rec {
			if known[k] || v == "" {
				continue
			}
			if acct.Attributes == nil {
				acct.Attributes = make(map[string]string)
			}
			acct.Attributes[k] = v
		}

		accounts = append(accounts, acct)
	}
	return accounts, issues
}

// DecodeContacts maps Records onto Contacts. Emails are lowercased; rows
// without an account reference are dropped.
func DecodeContacts(records []Record) []model.Contact {
	contacts := make([]model.Contact, 0, len(records))
	for _, rec := range records {
		c := model.Contact{
			ID:        rec.Get(colContactID...),
			AccountID: rec.Get(colAccountID[:1]...),
			Email:     strings.ToLower(rec.Get(colEmail...)),
			Phone:     rec.Get(colPhone...),
		}
		if c.AccountID == "" {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts
}
