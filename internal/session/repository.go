package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Errors for repository operations.
var (
	ErrNotFound = errors.New("session record not found")
	ErrCorrupt  = errors.New("session record corrupted")
)

// Repository reads and writes the single session record.
type Repository interface {
	// Read returns ErrNotFound when nothing is stored and ErrCorrupt when
	// the stored value is not a usable record.
	Read() (*Record, error)
	Write(rec *Record) error
	Clear() error
}

type jsonRepository struct {
	storage Storage
	key     string
}

// NewRepository stores the record as JSON under key (DefaultKey if empty).
func NewRepository(storage Storage, key string) Repository {
	if key == "" {
		key = DefaultKey
	}
	return &jsonRepository{storage: storage, key: key}
}

func (r *jsonRepository) Read() (*Record, error) {
	raw, ok, err := r.storage.Get(r.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	return decodeRecord(raw)
}

// decodeRecord reads a stored record leniently. Only the name decides whether
// the record is usable: a non-empty string or a non-zero number. Other fields
// of the wrong type fall back to their zero values.
func decodeRecord(raw string) (*Record, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrCorrupt)
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: not an object", ErrCorrupt)
	}

	rec := &Record{
		Name:     nameValue(doc.Get("name")),
		Email:    stringValue(doc.Get("email")),
		Avatar:   stringValue(doc.Get("avatar")),
		Provider: stringValue(doc.Get("provider")),
		TS:       millisValue(doc.Get("ts")),
	}
	if rec.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrCorrupt)
	}
	return rec, nil
}

func nameValue(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		if r.Num != 0 {
			return r.Raw
		}
	}
	return ""
}

func stringValue(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return ""
}

// millisValue accepts a number or a numeric string; anything else is 0.
func millisValue(r gjson.Result) int64 {
	switch r.Type {
	case gjson.Number, gjson.String:
		return r.Int()
	}
	return 0
}

func (r *jsonRepository) Write(rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.storage.Set(r.key, string(data))
}

func (r *jsonRepository) Clear() error {
	return r.storage.Remove(r.key)
}
