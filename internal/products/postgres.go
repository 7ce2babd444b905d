package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresSource reads municipality-product data from PostgreSQL.
type PostgresSource struct {
	db *sqlx.DB
}

// NewPostgresSource wraps an open connection pool.
func NewPostgresSource(db *sqlx.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// linkRow is one row of the municipality-product join.
type linkRow struct {
	MunicipalityID   int64    `db:"municipio_id"`
	MunicipalityName string   `db:"municipio"`
	ProductID        int64    `db:"producto_id"`
	ProductName      string   `db:"producto"`
	CycleDays        *int     `db:"ciclo_dias"`
	TempMin          *float64 `db:"temp_min"`
	TempMax          *float64 `db:"temp_max"`
	HumidityMin      *float64 `db:"humedad_min"`
	HumidityMax      *float64 `db:"humedad_max"`
	Popularity       *int     `db:"cont"`
}

const linkQuery = `
	SELECT
		m.id          AS municipio_id,
		m.nombre      AS municipio,
		p.id          AS producto_id,
		p.nombre      AS producto,
		p.ciclo_dias  AS ciclo_dias,
		p.temp_min    AS temp_min,
		p.temp_max    AS temp_max,
		p.humedad_min AS humedad_min,
		p.humedad_max AS humedad_max,
		p.cont        AS cont
	FROM municipio m
	JOIN municipio_producto mp ON mp.municipio_id = m.id
	JOIN producto p            ON p.id = mp.producto_id`

func (s *PostgresSource) Municipalities(ctx context.Context) ([]Municipality, error) {
	var rows []linkRow
	err := s.db.SelectContext(ctx, &rows, linkQuery+` ORDER BY m.nombre, p.nombre`)
	if err != nil {
		return nil, &SourceError{Err: err}
	}
	return groupRows(rows), nil
}

func (s *PostgresSource) MunicipalityProducts(ctx context.Context, name string) (*Municipality, error) {
	var rows []linkRow
	err := s.db.SelectContext(ctx, &rows,
		linkQuery+` WHERE lower(m.nombre) = lower($1) ORDER BY p.nombre`, name)
	if err != nil {
		return nil, &SourceError{Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: municipality %q", ErrNotFound, name)
	}
	munis := groupRows(rows)
	return &munis[0], nil
}

func (s *PostgresSource) AddInterest(ctx context.Context, name string) (int, error) {
	var cont int
	err := s.db.GetContext(ctx, &cont,
		`UPDATE producto SET cont = COALESCE(cont, 0) + 1 WHERE lower(nombre) = lower($1) RETURNING cont`,
		name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: product %q", ErrNotFound, name)
	}
	if err != nil {
		return 0, &SourceError{Err: err}
	}
	return cont, nil
}

func (s *PostgresSource) SetPopularity(ctx context.Context, productID int64, value int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE producto SET cont = $1 WHERE id = $2`, value, productID)
	if err != nil {
		return &SourceError{Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: product id %d", ErrNotFound, productID)
	}
	return nil
}

func (s *PostgresSource) InitPopularity(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE producto SET cont = floor(1 + random() * 5)::int`)
	if err != nil {
		return &SourceError{Err: err}
	}
	return nil
}

// groupRows turns the flat join result into municipalities, preserving the
// query's ordering.
func groupRows(rows []linkRow) []Municipality {
	var munis []Municipality
	index := make(map[int64]int)

	for _, r := range rows {
		i, ok := index[r.MunicipalityID]
		if !ok {
			munis = append(munis, Municipality{ID: r.MunicipalityID, Name: r.MunicipalityName})
			i = len(munis) - 1
			index[r.MunicipalityID] = i
		}
		pop := 0
		if r.Popularity != nil {
			pop = *r.Popularity
		}
		munis[i].Products = append(munis[i].Products, Product{
			ID:          r.ProductID,
			Name:        r.ProductName,
			CycleDays:   r.CycleDays,
			TempMin:     r.TempMin,
			TempMax:     r.TempMax,
			HumidityMin: r.HumidityMin,
			HumidityMax: r.HumidityMax,
			Popularity:  pop,
		})
	}
	return munis
}
