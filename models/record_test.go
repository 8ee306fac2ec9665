package models

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reversingDecryptor "decrypts" by reversing the blob, so tests can tell a
// decrypted value from the ciphertext without real crypto.
type reversingDecryptor struct{}

func (reversingDecryptor) Decrypt(ciphertext []byte) (string, error) {
	out := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		out[len(ciphertext)-1-i] = b
	}
	return string(out), nil
}

func sealedField(plain string) string {
	reversed, _ := reversingDecryptor{}.Decrypt([]byte(plain))
	return base64.StdEncoding.EncodeToString([]byte(reversed))
}

func TestNewRecord(t *testing.T) {
	for _, rt := range []RecordType{
		RecordTypeDiveLog, RecordTypeSighting, RecordTypePhoto,
		RecordTypeCertification, RecordTypeSiteState, RecordTypeTrip,
	} {
		rec, err := NewRecord(rt)
		require.NoError(t, err, rt)
		assert.Equal(t, rt, rec.Type())
	}

	_, err := NewRecord("wishlist_item")
	assert.ErrorIs(t, err, ErrUnknownRecordType)
}

func TestDiveLog_ApplyRemote(t *testing.T) {
	at := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	fields := map[string]any{
		"id":           "dive-1",
		"site_id":      "site-9",
		"started_at":   at.Format(time.RFC3339Nano),
		"duration_min": float64(45),
		"max_depth_m":  18.5,
		"rating":       float64(5),
		"notes":        sealedField("night dive"),
		"buddy":        sealedField("Sam"),
		"updated_at":   at.Add(2 * time.Hour).Format(time.RFC3339Nano),
	}

	var d DiveLog
	require.NoError(t, d.ApplyRemote(fields, reversingDecryptor{}))

	assert.Equal(t, "dive-1", d.ID)
	assert.Equal(t, "site-9", d.SiteID)
	assert.Equal(t, 45, d.DurationMin)
	assert.Equal(t, 18.5, d.MaxDepthM)
	assert.Equal(t, "night dive", d.Notes, "sensitive field arrives decrypted")
	assert.Equal(t, "Sam", d.Buddy)
	assert.True(t, d.StartedAt.Equal(at))
}

func TestApplyRemote_DecodeFailures(t *testing.T) {
	at := time.Now().UTC().Format(time.RFC3339Nano)

	valid := func() map[string]any {
		return map[string]any{
			"id": "sight-1", "dive_id": "dive-1", "species_id": "manta-ray",
			"count": float64(2), "updated_at": at,
		}
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{name: "missing field", mutate: func(f map[string]any) { delete(f, "species_id") }},
		{name: "wrong number type", mutate: func(f map[string]any) { f["count"] = "two" }},
		{name: "bad timestamp", mutate: func(f map[string]any) { f["updated_at"] = "yesterday" }},
		{name: "non-string id", mutate: func(f map[string]any) { f["id"] = float64(7) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := valid()
			tt.mutate(fields)

			var s Sighting
			err := s.ApplyRemote(fields, nil)
			assert.ErrorIs(t, err, ErrFieldDecode)
		})
	}
}

func TestApplyRemote_EncryptedFieldEdgeCases(t *testing.T) {
	at := time.Now().UTC().Format(time.RFC3339Nano)
	base := map[string]any{
		"id": "trip-1", "name": "Komodo 2026",
		"starts_on": at, "ends_on": at, "updated_at": at,
	}

	t.Run("empty sealed field decodes to empty plaintext", func(t *testing.T) {
		fields := base
		fields["notes"] = ""

		var trip Trip
		require.NoError(t, trip.ApplyRemote(fields, reversingDecryptor{}))
		assert.Empty(t, trip.Notes)
	})

	t.Run("bad base64 fails the whole record", func(t *testing.T) {
		fields := base
		fields["notes"] = "%%% not base64 %%%"

		var trip Trip
		assert.ErrorIs(t, trip.ApplyRemote(fields, reversingDecryptor{}), ErrFieldDecode)
	})

	t.Run("sealed value without a decryptor", func(t *testing.T) {
		fields := base
		fields["notes"] = sealedField("reef notes")

		var trip Trip
		assert.ErrorIs(t, trip.ApplyRemote(fields, nil), ErrFieldDecode)
	})
}

func TestClone_IsIndependent(t *testing.T) {
	orig := &Certification{
		ID: "cert-1", Agency: "PADI", Level: "AOW",
		CardNumber: "123-456", UpdatedAt: time.Now(),
	}

	clone := orig.Clone().(*Certification)
	clone.CardNumber = "999-999"

	assert.Equal(t, "123-456", orig.CardNumber, "mutating the clone leaves the original intact")
	assert.Equal(t, orig.ID, clone.ID)
}
