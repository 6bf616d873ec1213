package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	ts := time.Now()
	writeFile(t, dir, "silver_account_1.csv",
		"account_id,account_name,region,annual_revenue_usd\nA1,Acme Corp,EastAfrica,500\nA2,ACME Corporation,WestAfrica,300\n", ts)
	writeFile(t, dir, "silver_contact_1.json",
		`[{"contact_id":"C1","account_id":"A1","email":"a@acme.com"}]`, ts)
	manual := filepath.Join(dir, "manual_account_linkages.json")
	require.NoError(t, os.WriteFile(manual, []byte(`{"A1":"A2"}`), 0o644))

	snap, err := NewLoader(Config{
		Dir:            dir,
		AccountTable:   "account",
		ContactTable:   "contact",
		ManualLinkages: manual,
	}).Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Accounts, 2)
	assert.Empty(t, snap.Rejected)
	assert.Equal(t, filepath.Join(dir, "silver_account_1.csv"), snap.AccountSource)
	assert.True(t, snap.ContactsAvailable)
	assert.Len(t, snap.Contacts, 1)
	assert.True(t, snap.Manual.Linked("A1", "A2"))
}

func TestLoader_NoContacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "silver_account_1.csv", "account_id,account_name,region\nA1,Acme,EastAfrica\n", time.Now())

	snap, err := NewLoader(Config{Dir: dir, AccountTable: "account", ContactTable: "contact"}).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.ContactsAvailable)
	assert.Empty(t, snap.Contacts)
	assert.Empty(t, snap.Manual)
}

func TestLoader_NoAccounts(t *testing.T) {
	_, err := NewLoader(Config{Dir: t.TempDir(), AccountTable: "account", ContactTable: "contact"}).Load(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoSnapshot))
}
