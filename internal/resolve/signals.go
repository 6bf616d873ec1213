package resolve

import (
	"strings"

	"github.com/sells-group/account-linker/internal/model"
)

// ParentMatch reports whether both accounts name the same parent account.
func ParentMatch(a, b model.Account) bool {
	return a.HasParent() && b.HasParent() && a.ParentAccountID == b.ParentAccountID
}

type contactKeys struct {
	emails map[string]struct{}
	phones map[string]struct{}
}

// ContactIndex groups contact emails and phone numbers by account so the
// contact-overlap signal is a pair of set intersections. A nil or empty index
// never reports overlap.
type ContactIndex struct {
	byAccount map[string]*contactKeys
}

// NewContactIndex indexes contacts by account ID. Blank emails and phones are
// treated as missing.
func NewContactIndex(contacts []model.Contact) *ContactIndex {
	idx := &ContactIndex{byAccount: make(map[string]*contactKeys)}
	for _, c := range contacts {
		if c.AccountID == "" {
			continue
		}
		email := normalizeEmail(c.Email)
		phone := strings.TrimSpace(c.Phone)
		if email == "" && phone == "" {
			continue
		}

		keys, ok := idx.byAccount[c.AccountID]
		if !ok {
			keys = &contactKeys{
				emails: make(map[string]struct{}),
				phones: make(map[string]struct{}),
			}
			idx.byAccount[c.AccountID] = keys
		}
		if email != "" {
			keys.emails[email] = struct{}{}
		}
		if phone != "" {
			keys.phones[phone] = struct{}{}
		}
	}
	return idx
}

// Len returns the number of accounts that have at least one email or phone.
func (idx *ContactIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.byAccount)
}

// Overlap reports whether the two accounts share an email or a phone number.
func (idx *ContactIndex) Overlap(accountID1, accountID2 string) bool {
	if idx.Len() == 0 {
		return false
	}
	k1, ok1 := idx.byAccount[accountID1]
	k2, ok2 := idx.byAccount[accountID2]
	if !ok1 || !ok2 {
		return false
	}
	return intersects(k1.emails, k2.emails) || intersects(k1.phones, k2.phones)
}

func intersects(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
