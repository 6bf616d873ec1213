package snapshot

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/model"
)

// DefaultPrefix is the layer prefix of input snapshot files.
const DefaultPrefix = "silver"

// Config locates the inputs of one run.
type Config struct {
	Dir            string
	Prefix         string // default DefaultPrefix
	AccountTable   string
	ContactTable   string
	ManualLinkages string
}

// Snapshot is the fully loaded input of one run.
type Snapshot struct {
	Accounts          []model.Account
	Rejected          []RowIssue
	AccountSource     string
	Contacts          []model.Contact
	ContactSource     string
	ContactsAvailable bool
	Manual            model.ManualLinkages
}

// Loader reads the latest account and contact snapshots and the manual
// linkage file.
type Loader struct {
	cfg Config
	log *zap.Logger
}

// NewLoader creates a Loader for cfg.
func NewLoader(cfg Config) *Loader {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Loader{cfg: cfg, log: zap.L().With(zap.String("component", "snapshot"))}
}

// Load reads all inputs into memory. A missing account snapshot or an
// unparseable input is returned as an error; a missing contact snapshot only
// disables the contact signal.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	acctPath, err := LatestSnapshot(l.cfg.Dir, l.cfg.Prefix, l.cfg.AccountTable)
	if err != nil {
		return nil, err
	}
	records, err := ReadTable(ctx, acctPath)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read accounts %s", acctPath)
	}
	snap.Accounts, snap.Rejected = DecodeAccounts(records)
	snap.AccountSource = acctPath
	l.log.Info("loaded accounts",
		zap.String("file", acctPath),
		zap.Int("rows", len(records)),
		zap.Int("rejected", len(snap.Rejected)),
	)

	contactPath, err := LatestSnapshot(l.cfg.Dir, l.cfg.Prefix, l.cfg.ContactTable)
	switch {
	case eris.Is(err, ErrNoSnapshot):
		l.log.Info("no contact snapshot, contact signal disabled", zap.String("dir", l.cfg.Dir))
	case err != nil:
		return nil, err
	default:
		records, err := ReadTable(ctx, contactPath)
		if err != nil {
			return nil, eris.Wrapf(err, "snapshot: read contacts %s", contactPath)
		}
		snap.Contacts = DecodeContacts(records)
		snap.ContactSource = contactPath
		snap.ContactsAvailable = len(snap.Contacts) > 0
		l.log.Info("loaded contacts", zap.String("file", contactPath), zap.Int("contacts", len(snap.Contacts)))
	}

	snap.Manual, err = LoadManualLinkages(l.cfg.ManualLinkages)
	if err != nil {
		return nil, err
	}
	l.log.Info("loaded manual linkages", zap.Int("linkages", len(snap.Manual)))

	return snap, nil
}
