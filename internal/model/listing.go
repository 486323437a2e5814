package model

import (
	"strings"

	"estatechat/internal/utils"
)

// ListingRow is a listing as persisted in the listings table. Every column is read
// as text so that delimited numbers ("1,234,567") survive the scan.
type ListingRow struct {
	ID              string  `db:"id"`
	Borough         *string `db:"borough"`
	Neighborhood    *string `db:"neighborhood"`
	Address         *string `db:"address"`
	SalePrice       *string `db:"sale_price"`
	GrossSquareFeet *string `db:"gross_square_feet"`
	YearBuilt       *string `db:"year_built"`
	Description     *string `db:"description"`
}

// ListingRecord is the normalized listing returned by both search paths.
// Unknown numeric values are nil and encode as JSON null.
type ListingRecord struct {
	ID              string   `json:"id"`
	Borough         *string  `json:"borough"`
	Neighborhood    *string  `json:"neighborhood"`
	Address         *string  `json:"address"`
	SalePrice       *float64 `json:"sale_price"`
	GrossSquareFeet *float64 `json:"gross_square_feet"`
	YearBuilt       *int     `json:"year_built"`
	Snippet         string   `json:"snippet,omitempty"`
}

// Record normalizes a persisted row.
func (r ListingRow) Record() ListingRecord {
	return ListingRecord{
		ID:              r.ID,
		Borough:         nonBlank(r.Borough),
		Neighborhood:    nonBlank(r.Neighborhood),
		Address:         nonBlank(r.Address),
		SalePrice:       utils.ParseNumberPtr(r.SalePrice),
		GrossSquareFeet: utils.ParseNumberPtr(r.GrossSquareFeet),
		YearBuilt:       utils.ParseYearPtr(r.YearBuilt),
	}
}

// HasDescription reports whether the row carries text worth embedding.
func (r ListingRow) HasDescription() bool {
	return nonBlank(r.Description) != nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
