package models

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// markingSealer tags sealed values so tests can spot them in the output map.
type markingSealer struct{}

func (markingSealer) Encrypt(plaintext string) ([]byte, error) {
	return []byte("sealed:" + plaintext), nil
}

type failingSealer struct{}

func (failingSealer) Encrypt(string) ([]byte, error) {
	return nil, errors.New("no key available")
}

func TestSealFields_SealsOnlySensitiveFields(t *testing.T) {
	doc := []byte(`{"id":"dive-1","site_id":"site-9","notes":"night dive","buddy":"Sam","rating":5}`)

	fields, err := SealFields(RecordTypeDiveLog, doc, markingSealer{})
	require.NoError(t, err)

	assert.Equal(t, "dive-1", fields["id"])
	assert.Equal(t, float64(5), fields["rating"])

	notes, err := base64.StdEncoding.DecodeString(fields["notes"].(string))
	require.NoError(t, err)
	assert.Equal(t, "sealed:night dive", string(notes))

	buddy, err := base64.StdEncoding.DecodeString(fields["buddy"].(string))
	require.NoError(t, err)
	assert.Equal(t, "sealed:Sam", string(buddy))
}

func TestSealFields_NonSensitiveTypeUntouched(t *testing.T) {
	// sightings have no sensitive fields; the document passes through as-is
	doc := []byte(`{"id":"sight-1","species_id":"manta-ray","count":2}`)

	fields, err := SealFields(RecordTypeSighting, doc, failingSealer{})
	require.NoError(t, err, "the sealer is never consulted")
	assert.Equal(t, "manta-ray", fields["species_id"])
}

func TestSealFields_EmptyAndAbsentFieldsSkipped(t *testing.T) {
	doc := []byte(`{"id":"trip-1","name":"Komodo 2026","notes":""}`)

	fields, err := SealFields(RecordTypeTrip, doc, failingSealer{})
	require.NoError(t, err, "empty sensitive fields are not sealed")
	assert.Equal(t, "", fields["notes"])
}

func TestSealFields_Errors(t *testing.T) {
	t.Run("malformed document", func(t *testing.T) {
		_, err := SealFields(RecordTypeDiveLog, []byte("not json"), markingSealer{})
		assert.ErrorContains(t, err, "decode record document")
	})

	t.Run("non-string sensitive field", func(t *testing.T) {
		_, err := SealFields(RecordTypeDiveLog, []byte(`{"id":"dive-1","notes":42}`), markingSealer{})
		assert.ErrorIs(t, err, ErrFieldDecode)
	})

	t.Run("sealer failure", func(t *testing.T) {
		_, err := SealFields(RecordTypeDiveLog, []byte(`{"id":"dive-1","notes":"x"}`), failingSealer{})
		assert.ErrorContains(t, err, `seal field "notes"`)
	})
}

func TestSealFields_RoundTripsThroughApplyRemote(t *testing.T) {
	// Seal with real-ish reversible crypto and apply the result back.
	doc := []byte(`{"id":"photo-1","dive_id":"dive-1","blob_key":"blobs/p1","caption":"us at the wreck",` +
		`"taken_at":"2026-07-01T10:00:00Z","updated_at":"2026-07-01T12:00:00Z"}`)

	fields, err := SealFields(RecordTypePhoto, doc, reversingSealer{})
	require.NoError(t, err)

	var photo Photo
	require.NoError(t, photo.ApplyRemote(fields, reversingDecryptor{}))
	assert.Equal(t, "us at the wreck", photo.Caption)
	assert.Equal(t, "blobs/p1", photo.BlobKey)
}

// reversingSealer is the encrypt half of reversingDecryptor.
type reversingSealer struct{}

func (reversingSealer) Encrypt(plaintext string) ([]byte, error) {
	reversed, _ := reversingDecryptor{}.Decrypt([]byte(plaintext))
	return []byte(reversed), nil
}
