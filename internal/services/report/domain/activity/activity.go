// Package activity defines the logged-activity domain model the report
// pipeline reads. Records are created by upstream logging, validated there,
// and never mutated by this service.
package activity

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/carbontrace/internal/platform/errors"
)

// Category classifies an activity's emission source.
type Category string

const (
	CategoryTransport Category = "transport"
	CategoryEnergy    Category = "energy"
	CategoryFood      Category = "food"
	CategoryShopping  Category = "shopping"
	CategoryWaste     Category = "waste"
	CategoryOther     Category = "other"
)

// KnownCategories lists the categories the catalog and insights understand.
// Unknown categories still aggregate; they simply get generic treatment.
var KnownCategories = []Category{
	CategoryTransport,
	CategoryEnergy,
	CategoryFood,
	CategoryShopping,
	CategoryWaste,
	CategoryOther,
}

// Record is one logged activity with its computed CO2-equivalent mass.
type Record struct {
	ID          string
	UserID      string
	Category    Category
	Subcategory string
	CO2Kg       float64
	OccurredAt  time.Time
	Metadata    map[string]string
}

// WellFormed reports whether the record can participate in aggregation.
// Malformed records are soft errors: excluded and counted, never fatal.
func (r Record) WellFormed() bool {
	return r.CO2Kg >= 0 && !r.OccurredAt.IsZero()
}

// Validate checks the fields required before a record enters the store.
// The derivation pipeline itself never validates; this guards the append path.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return apperrors.New(apperrors.CodeActivityEmptyID, "activity id is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return apperrors.New(apperrors.CodeActivityEmptyUserID, "activity user id is required")
	}
	if r.CO2Kg < 0 {
		return apperrors.WithMetadata(apperrors.CodeActivityNegativeCO2, "activity co2 mass is negative", map[string]string{
			"activity_id": r.ID,
		})
	}
	if r.OccurredAt.IsZero() {
		return apperrors.WithMetadata(apperrors.CodeActivityZeroTime, "activity timestamp is missing", map[string]string{
			"activity_id": r.ID,
		})
	}
	return nil
}
