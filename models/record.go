package models

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// RecordType identifies one of the fixed set of syncable entity kinds.
type RecordType string

const (
	RecordTypeDiveLog       RecordType = "dive_log"
	RecordTypeSighting      RecordType = "sighting"
	RecordTypePhoto         RecordType = "photo"
	RecordTypeCertification RecordType = "certification"
	RecordTypeSiteState     RecordType = "site_state"
	RecordTypeTrip          RecordType = "trip"
)

// ErrFieldDecode indicates that a remote snapshot field could not be decoded
// into the shape the local record expects (wrong type, bad base64, bad
// timestamp format, failed decryption).
var ErrFieldDecode = errors.New("remote field decode failed")

// ErrUnknownRecordType indicates a record type outside the fixed syncable set.
var ErrUnknownRecordType = errors.New("unknown record type")

// FieldDecryptor decrypts a sealed sensitive field value back to plaintext.
// Implemented by crypto.FieldEncryptor; declared here so models carries no
// dependency on the crypto package.
type FieldDecryptor interface {
	Decrypt(ciphertext []byte) (string, error)
}

// SyncableRecord is the capability every syncable entity implements: a stable
// identifier, a last-modified timestamp, and the ability to overwrite its own
// fields from a decoded remote snapshot.
//
// ApplyRemote must either apply the whole snapshot or leave the record
// unchanged in a meaningful way is NOT required; callers that need
// all-or-nothing semantics apply the snapshot to a Clone and discard it on
// error.
type SyncableRecord interface {
	LocalID() string
	Type() RecordType
	ModifiedAt() time.Time
	Clone() SyncableRecord
	ApplyRemote(fields map[string]any, dec FieldDecryptor) error
}

// NewRecord returns a zero-value record of the given type, ready to be
// populated via ApplyRemote or JSON unmarshalling.
func NewRecord(rt RecordType) (SyncableRecord, error) {
	switch rt {
	case RecordTypeDiveLog:
		return &DiveLog{}, nil
	case RecordTypeSighting:
		return &Sighting{}, nil
	case RecordTypePhoto:
		return &Photo{}, nil
	case RecordTypeCertification:
		return &Certification{}, nil
	case RecordTypeSiteState:
		return &SiteState{}, nil
	case RecordTypeTrip:
		return &Trip{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecordType, rt)
	}
}

// DiveLog is a single logged dive. Notes and Buddy are sensitive and travel
// encrypted in remote snapshots.
type DiveLog struct {
	ID          string    `json:"id"`
	SiteID      string    `json:"site_id"`
	StartedAt   time.Time `json:"started_at"`
	DurationMin int       `json:"duration_min"`
	MaxDepthM   float64   `json:"max_depth_m"`
	Rating      int       `json:"rating"`
	Notes       string    `json:"notes"`
	Buddy       string    `json:"buddy"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d *DiveLog) LocalID() string       { return d.ID }
func (d *DiveLog) Type() RecordType      { return RecordTypeDiveLog }
func (d *DiveLog) ModifiedAt() time.Time { return d.UpdatedAt }

func (d *DiveLog) Clone() SyncableRecord {
	cp := *d
	return &cp
}

func (d *DiveLog) ApplyRemote(fields map[string]any, dec FieldDecryptor) error {
	var err error
	if d.ID, err = fieldString(fields, "id"); err != nil {
		return err
	}
	if d.SiteID, err = fieldString(fields, "site_id"); err != nil {
		return err
	}
	if d.StartedAt, err = fieldTime(fields, "started_at"); err != nil {
		return err
	}
	if d.DurationMin, err = fieldInt(fields, "duration_min"); err != nil {
		return err
	}
	if d.MaxDepthM, err = fieldFloat(fields, "max_depth_m"); err != nil {
		return err
	}
	if d.Rating, err = fieldInt(fields, "rating"); err != nil {
		return err
	}
	if d.Notes, err = fieldEncrypted(fields, "notes", dec); err != nil {
		return err
	}
	if d.Buddy, err = fieldEncrypted(fields, "buddy", dec); err != nil {
		return err
	}
	if d.UpdatedAt, err = fieldTime(fields, "updated_at"); err != nil {
		return err
	}
	return nil
}

// Sighting is a species observation made during a dive.
type Sighting struct {
	ID        string    `json:"id"`
	DiveID    string    `json:"dive_id"`
	SpeciesID string    `json:"species_id"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Sighting) LocalID() string       { return s.ID }
func (s *Sighting) Type() RecordType      { return RecordTypeSighting }
func (s *Sighting) ModifiedAt() time.Time { return s.UpdatedAt }

func (s *Sighting) Clone() SyncableRecord {
	cp := *s
	return &cp
}

func (s *Sighting) ApplyRemote(fields map[string]any, _ FieldDecryptor) error {
	var err error
	if s.ID, err = fieldString(fields, "id"); err != nil {
		return err
	}
	if s.DiveID, err = fieldString(fields, "dive_id"); err != nil {
		return err
	}
	if s.SpeciesID, err = fieldString(fields, "species_id"); err != nil {
		return err
	}
	if s.Count, err = fieldInt(fields, "count"); err != nil {
		return err
	}
	if s.UpdatedAt, err = fieldTime(fields, "updated_at"); err != nil {
		return err
	}
	return nil
}

// Photo references a dive photo blob by its storage key. The caption is
// sensitive (free text, may describe people or exact locations).
type Photo struct {
	ID        string    `json:"id"`
	DiveID    string    `json:"dive_id"`
	BlobKey   string    `json:"blob_key"`
	Caption   string    `json:"caption"`
	TakenAt   time.Time `json:"taken_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Photo) LocalID() string       { return p.ID }
func (p *Photo) Type() RecordType      { return RecordTypePhoto }
func (p *Photo) ModifiedAt() time.Time { return p.UpdatedAt }

func (p *Photo) Clone() SyncableRecord {
	cp := *p
	return &cp
}

func (p *Photo) ApplyRemote(fields map[string]any, dec FieldDecryptor) error {
	var err error
	if p.ID, err = fieldString(fields, "id"); err != nil {
		return err
	}
	if p.DiveID, err = fieldString(fields, "dive_id"); err != nil {
		return err
	}
	if p.BlobKey, err = fieldString(fields, "blob_key"); err != nil {
		return err
	}
	if p.Caption, err = fieldEncrypted(fields, "caption", dec); err != nil {
		return err
	}
	if p.TakenAt, err = fieldTime(fields, "taken_at"); err != nil {
		return err
	}
	if p.UpdatedAt, err = fieldTime(fields, "updated_at"); err != nil {
		return err
	}
	return nil
}

// Certification is a diver certification card. The card number is sensitive.
type Certification struct {
	ID         string    `json:"id"`
	Agency     string    `json:"agency"`
	Level      string    `json:"level"`
	CardNumber string    `json:"card_number"`
	IssuedOn   time.Time `json:"issued_on"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *Certification) LocalID() string       { return c.ID }
func (c *Certification) Type() RecordType      { return RecordTypeCertification }
func (c *Certification) ModifiedAt() time.Time { return c.UpdatedAt }

func (c *Certification) Clone() SyncableRecord {
	cp := *c
	return &cp
}

func (c *Certification) ApplyRemote(fields map[string]any, dec FieldDecryptor) error {
	var err error
	if c.ID, err = fieldString(fields, "id"); err != nil {
		return err
	}
	if c.Agency, err = fieldString(fields, "agency"); err != nil {
		return err
	}
	if c.Level, err = fieldString(fields, "level"); err != nil {
		return err
	}
	if c.CardNumber, err = fieldEncrypted(fields, "card_number", dec); err != nil {
		return err
	}
	if c.IssuedOn, err = fieldTime(fields, "issued_on"); err != nil {
		return err
	}
	if c.UpdatedAt, err = fieldTime(fields, "updated_at"); err != nil {
		return err
	}
	return nil
}

// SiteState is the user's per-site state (favorite flag, visit counter).
type SiteState struct {
	ID         string    `json:"id"`
	Favorite   bool      `json:"favorite"`
	Visited    bool      `json:"visited"`
	VisitCount int       `json:"visit_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *SiteState) LocalID() string       { return s.ID }
func (s *SiteState) Type() RecordType      { return RecordTypeSiteState }
func (s *SiteState) ModifiedAt() time.Time { return s.UpdatedAt }

func (s *SiteState) Clone() SyncableRecord {
	cp := *s
	return &cp
}

func (s *SiteState) ApplyRemote(fields map[string]any, _ FieldDecryptor) error {
	var err error
	if s.ID, err = fieldString(fields, "id"); err != nil {
		return err
	}
	if s.Favorite, err = fieldBool(fields, "favorite"); err != nil {
		return err
	}
	if s.Visited, err = fieldBool(fields, "visited"); err != nil {
		return err
	}
	if s.VisitCount, err = fieldInt(fields, "visit_count"); err != nil {
		return err
	}
	if s.UpdatedAt, err = fieldTime(fields, "updated_at"); err != nil {
		return err
	}
	return nil
}

// Trip groups dives under a named journey. Notes are sensitive.
type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartsOn  time.Time `json:"starts_on"`
	EndsOn    time.Time `json:"ends_on"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Trip) LocalID() string       { return t.ID }
func (t *Trip) Type() RecordType      { return RecordTypeTrip }
func (t *Trip) ModifiedAt() time.Time { return t.UpdatedAt }

func (t *Trip) Clone() SyncableRecord {
	cp := *t
	return &cp
}

func (t *Trip) ApplyRemote(fields map[string]any, dec FieldDecryptor) error {
	var err error
	if t.ID, err = fieldString(fields, "id"); err != nil {
		return err
	}
	if t.Name, err = fieldString(fields, "name"); err != nil {
		return err
	}
	if t.StartsOn, err = fieldTime(fields, "starts_on"); err != nil {
		return err
	}
	if t.EndsOn, err = fieldTime(fields, "ends_on"); err != nil {
		return err
	}
	if t.Notes, err = fieldEncrypted(fields, "notes", dec); err != nil {
		return err
	}
	if t.UpdatedAt, err = fieldTime(fields, "updated_at"); err != nil {
		return err
	}
	return nil
}

// ── snapshot field helpers ──────────────────────────────────────────────────
//
// Remote snapshots arrive as generic JSON objects, so every accessor has to
// cope with the types encoding/json produces (string, float64, bool).

func fieldString(fields map[string]any, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: missing field %q", ErrFieldDecode, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q is not a string", ErrFieldDecode, key)
	}
	return s, nil
}

func fieldInt(fields map[string]any, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrFieldDecode, key)
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: field %q is not a number", ErrFieldDecode, key)
	}
}

func fieldFloat(fields map[string]any, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", ErrFieldDecode, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: field %q is not a number", ErrFieldDecode, key)
	}
}

func fieldBool(fields map[string]any, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok {
		return false, fmt.Errorf("%w: missing field %q", ErrFieldDecode, key)
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: field %q is not a bool", ErrFieldDecode, key)
	}
	return b, nil
}

func fieldTime(fields map[string]any, key string) (time.Time, error) {
	s, err := fieldString(fields, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: field %q: %v", ErrFieldDecode, key, err)
	}
	return t, nil
}

// fieldEncrypted reads a base64-encoded sealed blob and decrypts it with dec.
// An empty string is allowed and decodes to the empty plaintext (the field
// was never set locally).
func fieldEncrypted(fields map[string]any, key string, dec FieldDecryptor) (string, error) {
	s, err := fieldString(fields, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", nil
	}
	if dec == nil {
		return "", fmt.Errorf("%w: field %q is encrypted but no decryptor was provided", ErrFieldDecode, key)
	}
	blob, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: field %q: %v", ErrFieldDecode, key, err)
	}
	plain, err := dec.Decrypt(blob)
	if err != nil {
		return "", fmt.Errorf("%w: field %q: %v", ErrFieldDecode, key, err)
	}
	return plain, nil
}
