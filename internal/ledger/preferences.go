package ledger

import "fmt"

// PreferencesKey is the fixed local key for the single preferences row.
// Remotely the document is keyed by the owner id instead, one per user.
const PreferencesKey = "preferences"

// Preferences holds the user's display and entry settings. There is exactly
// one row per installation and one remote document per owner.
type Preferences struct {
	Currency        string `json:"currency"`
	DateFormat      string `json:"date_format"`
	Theme           string `json:"theme"`
	DefaultAccount  string `json:"default_account,omitempty"`
	FirstDayOfMonth int    `json:"first_day_of_month"`

	IsDeleted    bool  `json:"is_deleted"`
	LastModified int64 `json:"last_modified"`
}

// DefaultPreferences returns the preferences used before the user changes any.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Currency:        "USD",
		DateFormat:      "2006-01-02",
		Theme:           "system",
		FirstDayOfMonth: 1,
	}
}

// Record converts the preferences to their sync-neutral form.
func (p *Preferences) Record() (Record, error) {
	fields, err := encodeFields(p)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Key:          PreferencesKey,
		Fields:       fields,
		IsDeleted:    p.IsDeleted,
		LastModified: p.LastModified,
	}, nil
}

// PreferencesFromRecord rebuilds preferences from their sync-neutral form.
func PreferencesFromRecord(r Record) (*Preferences, error) {
	var p Preferences
	if err := decodeFields(r.Fields, &p); err != nil {
		return nil, fmt.Errorf("invalid preferences record: %w", err)
	}
	p.IsDeleted = r.IsDeleted
	p.LastModified = r.LastModified
	return &p, nil
}
