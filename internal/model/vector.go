package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"estatechat/internal/utils"
)

// SnippetLength is the maximum number of runes kept from a description.
const SnippetLength = 200

var (
	// ErrInvalidMetadata is returned when a vector entry violates the metadata contract.
	ErrInvalidMetadata = errors.New("invalid vector metadata")
	// ErrInvalidFilter is returned for metadata filters the index cannot express.
	ErrInvalidFilter = errors.New("invalid metadata filter")
)

// FlexNumber is a metadata number that may arrive as a JSON number, a delimited
// string, or null. Values that do not parse become unknown.
type FlexNumber struct {
	Value *float64
}

// NewFlexNumber wraps an optional number.
func NewFlexNumber(v *float64) FlexNumber {
	return FlexNumber{Value: v}
}

// UnmarshalJSON implements json.Unmarshaler. It never fails on odd input.
func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	n.Value = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		n.Value = utils.ParseNumber(s)
		return nil
	}
	n.Value = utils.ParseNumber(string(data))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(*n.Value, 'f', -1, 64)), nil
}

// VectorMetadata is the fixed metadata shape stored alongside every listing vector.
type VectorMetadata struct {
	ID              string     `json:"id"`
	Text            string     `json:"text"`
	Neighborhood    string     `json:"neighborhood,omitempty"`
	Borough         string     `json:"borough,omitempty"`
	Address         string     `json:"address,omitempty"`
	SalePrice       FlexNumber `json:"sale_price"`
	GrossSquareFeet FlexNumber `json:"gross_square_feet"`
	YearBuilt       FlexNumber `json:"year_built"`
	Snippet         string     `json:"snippet,omitempty"`
}

// Validate enforces the ingestion contract: id and text are required and the
// fallback snippet is derived from text when missing.
func (m *VectorMetadata) Validate() error {
	m.ID = strings.TrimSpace(m.ID)
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMetadata)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: text is required for %s", ErrInvalidMetadata, m.ID)
	}
	if m.Snippet == "" {
		m.Snippet = Snippet(m.Text)
	}
	return nil
}

// Value implements driver.Valuer so metadata can be written to a jsonb column.
func (m VectorMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for jsonb columns.
func (m *VectorMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = VectorMetadata{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
}

// MetadataFromRow builds the metadata stored for a listing at ingestion time.
func MetadataFromRow(r ListingRow) VectorMetadata {
	rec := r.Record()
	meta := VectorMetadata{
		ID:              r.ID,
		Neighborhood:    deref(rec.Neighborhood),
		Borough:         deref(rec.Borough),
		Address:         deref(rec.Address),
		SalePrice:       NewFlexNumber(rec.SalePrice),
		GrossSquareFeet: NewFlexNumber(rec.GrossSquareFeet),
	}
	if r.Description != nil {
		meta.Text = strings.TrimSpace(*r.Description)
	}
	if rec.YearBuilt != nil {
		y := float64(*rec.YearBuilt)
		meta.YearBuilt = NewFlexNumber(&y)
	}
	return meta
}

// VectorEntry is one row of the vector index.
type VectorEntry struct {
	ID        string         `json:"id" binding:"required"`
	Embedding []float32      `json:"embedding" binding:"required"`
	Metadata  VectorMetadata `json:"metadata"`
}

// VectorHit is a nearest-neighbor match as returned by the vector index.
type VectorHit struct {
	ID       string
	Text     string
	Score    float64
	Metadata VectorMetadata
}

// Record converts a hit into a listing record with a snippet.
// The snippet comes from the matched text and falls back to the stored snippet.
func (h VectorHit) Record() ListingRecord {
	m := h.Metadata
	id := m.ID
	if id == "" {
		id = h.ID
	}

	rec := ListingRecord{
		ID:              id,
		Borough:         optional(m.Borough),
		Neighborhood:    optional(m.Neighborhood),
		Address:         optional(m.Address),
		SalePrice:       m.SalePrice.Value,
		GrossSquareFeet: m.GrossSquareFeet.Value,
		Snippet:         m.Snippet,
	}
	if m.YearBuilt.Value != nil && *m.YearBuilt.Value >= 1 {
		y := int(*m.YearBuilt.Value)
		rec.YearBuilt = &y
	}

	text := h.Text
	if strings.TrimSpace(text) == "" {
		text = m.Text
	}
	if strings.TrimSpace(text) != "" {
		rec.Snippet = Snippet(text)
	} else if s, cut := utils.TruncateRunes(rec.Snippet, SnippetLength); cut {
		rec.Snippet = s + "…"
	}
	return rec
}

// MetadataFilter is a vector index filter in operator-map form, e.g.
//
//	{"neighborhood": "SoHo", "sale_price": {"$lte": 1000000}}
type MetadataFilter map[string]any

// Snippet returns the first SnippetLength runes of text, with an ellipsis when cut.
func Snippet(text string) string {
	s, cut := utils.TruncateRunes(strings.TrimSpace(text), SnippetLength)
	if cut {
		return s + "…"
	}
	return s
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
