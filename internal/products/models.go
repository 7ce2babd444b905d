// Package products provides the product/municipality data source consumed by
// the recommendation pipeline: which products a municipality grows, their
// optimal climate ranges, cycle lengths and popularity counters.
package products

import (
	"context"
	"errors"
	"fmt"
)

// Product is a crop with its tolerance ranges. Ranges and cycle length may be
// absent in the source data, so they are pointers. JSON field names follow
// the public API this service exposes.
type Product struct {
	ID          int64    `db:"id" json:"producto_id"`
	Name        string   `db:"nombre" json:"producto"`
	CycleDays   *int     `db:"ciclo_dias" json:"ciclo_dias"`
	TempMin     *float64 `db:"temp_min" json:"temp_min"`
	TempMax     *float64 `db:"temp_max" json:"temp_max"`
	HumidityMin *float64 `db:"humedad_min" json:"humedad_min"`
	HumidityMax *float64 `db:"humedad_max" json:"humedad_max"`
	Popularity  int      `db:"cont" json:"cont"`
}

// Municipality groups the products linked to one municipality.
type Municipality struct {
	ID       int64     `json:"municipio_id"`
	Name     string    `json:"municipio"`
	Products []Product `json:"productos"`
}

// ErrNotFound is returned when a municipality or product does not exist.
var ErrNotFound = errors.New("not found")

// SourceError marks the product backend as unavailable. A ranking request
// cannot proceed without the product list, so callers treat it as fatal.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("product source unavailable: %v", e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Source is the read/write contract over municipality-product data.
type Source interface {
	// Municipalities lists every municipality with its products, ordered by
	// municipality and product name.
	Municipalities(ctx context.Context) ([]Municipality, error)

	// MunicipalityProducts returns one municipality by case-insensitive name.
	// Fails with ErrNotFound when the municipality has no linked products.
	MunicipalityProducts(ctx context.Context, name string) (*Municipality, error)

	// AddInterest increments a product's popularity counter by one and
	// returns the new value. Name matching is case-insensitive.
	AddInterest(ctx context.Context, name string) (int, error)

	// SetPopularity sets a product's counter to an explicit value (admin).
	SetPopularity(ctx context.Context, productID int64, value int) error

	// InitPopularity resets every counter to a small random seed (admin).
	InitPopularity(ctx context.Context) error
}
