package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// FieldSealer seals a plaintext field value into a self-contained encrypted
// blob. Implemented by crypto.FieldEncryptor.
type FieldSealer interface {
	Encrypt(plaintext string) ([]byte, error)
}

// sensitiveFields lists, per record type, the free-text fields that must
// never cross the trust boundary in plaintext. Everything else in a record is
// either an opaque identifier or a number the remote store may index.
var sensitiveFields = map[RecordType][]string{
	RecordTypeDiveLog:       {"notes", "buddy"},
	RecordTypePhoto:         {"caption"},
	RecordTypeCertification: {"card_number"},
	RecordTypeTrip:          {"notes"},
}

// SealFields prepares a locally-serialized record document for upload: the
// document is decoded into a generic field map and every sensitive field is
// replaced by the base64 encoding of its sealed blob. The inverse happens in
// each record's ApplyRemote.
func SealFields(rt RecordType, doc []byte, sealer FieldSealer) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("decode record document: %w", err)
	}

	for _, key := range sensitiveFields[rt] {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		plain, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %q is not a string", ErrFieldDecode, key)
		}
		if plain == "" {
			continue // empty fields stay empty, nothing to protect
		}

		sealed, err := sealer.Encrypt(plain)
		if err != nil {
			return nil, fmt.Errorf("seal field %q: %w", key, err)
		}
		fields[key] = base64.StdEncoding.EncodeToString(sealed)
	}

	return fields, nil
}
