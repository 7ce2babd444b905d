// Package market loads the static per-product market tables (monthly rank,
// prices, points and trend) and resolves the market signal for a product and
// calendar month.
package market

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/JuanD1P/AGRO-SABANA/internal/es"
)

// Trend tags.
const (
	TrendHigh    = "ALTO"
	TrendLow     = "BAJO"
	TrendNeutral = "NEUTRO"
)

// MonthlyRecord is the market signal for one product in one calendar month.
type MonthlyRecord struct {
	Month    string  `json:"mes"`
	Rank     int     `json:"puesto"`
	PriceMin float64 `json:"precio_min"`
	PriceMax float64 `json:"precio_max"`
	PriceAvg float64 `json:"precio_promedio"`
	Trend    string  `json:"tendencia"`
	Points   int     `json:"puntos"`
}

type productEntry struct {
	name   string
	months [12]*MonthlyRecord
}

// Table is the merged market table. Lookups are case- and
// diacritic-insensitive on product names. A nil *Table degrades every lookup
// to "not found", which callers score as a neutral 0.
type Table struct {
	byName map[string]*productEntry
}

// New returns an empty table.
func New() *Table {
	return &Table{byName: make(map[string]*productEntry)}
}

// Load reads the ranking and monthly-price files and merges them. Either
// path may be empty, loading only the other signal.
func Load(rankingPath, monthlyPath string) (*Table, error) {
	t := New()
	if rankingPath != "" {
		f, err := os.Open(rankingPath)
		if err != nil {
			return nil, fmt.Errorf("market ranking: %w", err)
		}
		err = t.LoadRanking(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("market ranking %s: %w", rankingPath, err)
		}
	}
	if monthlyPath != "" {
		f, err := os.Open(monthlyPath)
		if err != nil {
			return nil, fmt.Errorf("market monthly data: %w", err)
		}
		err = t.LoadMonthly(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("market monthly data %s: %w", monthlyPath, err)
		}
	}
	return t, nil
}

// rankingItem mirrors Puntuacion.json: one product with a rank per month,
// keyed by lowercase Spanish month name.
type rankingItem struct {
	Name    string              `json:"nombre"`
	Ranking map[string]*float64 `json:"ranking"`
}

// LoadRanking reads the monthly rank table. The top level may be a bare
// array or wrapped under "productos", "data" or "items".
func (t *Table) LoadRanking(r io.Reader) error {
	var items []rankingItem
	if err := decodeList(r, &items); err != nil {
		return err
	}
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		entry := t.entry(item.Name)
		for name, rank := range item.Ranking {
			idx, ok := es.MonthIndex(name)
			if !ok || rank == nil {
				continue
			}
			entry.month(idx).Rank = int(*rank)
		}
	}
	return nil
}

// monthlyItem mirrors DatosMensuales.json: one product with a row per month.
type monthlyItem struct {
	Name string `json:"producto"`
	Rows []struct {
		Month    string  `json:"mes"`
		PriceMin float64 `json:"precio_min"`
		PriceMax float64 `json:"precio_max"`
		PriceAvg float64 `json:"precio_promedio"`
		Trend    string  `json:"tendencia"`
		Points   int     `json:"puntos"`
	} `json:"datos"`
}

// LoadMonthly reads the monthly price/points/trend table.
func (t *Table) LoadMonthly(r io.Reader) error {
	var items []monthlyItem
	if err := decodeList(r, &items); err != nil {
		return err
	}
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		entry := t.entry(item.Name)
		for _, row := range item.Rows {
			idx, ok := es.MonthIndex(row.Month)
			if !ok {
				continue
			}
			rec := entry.month(idx)
			rec.PriceMin = row.PriceMin
			rec.PriceMax = row.PriceMax
			rec.PriceAvg = row.PriceAvg
			rec.Trend = NormalizeTrend(row.Trend)
			rec.Points = row.Points
		}
	}
	return nil
}

// Rank resolves the monthly market rank for a product. The boolean is false
// when the table has no entry for that product and month; callers treat that
// as a neutral 0, never a penalty.
func (t *Table) Rank(product string, monthIdx int) (int, bool) {
	rec, ok := t.Monthly(product, monthIdx)
	if !ok || rec.Rank == 0 {
		return 0, false
	}
	return rec.Rank, true
}

// Monthly returns the full market record for a product and month.
func (t *Table) Monthly(product string, monthIdx int) (*MonthlyRecord, bool) {
	if t == nil || monthIdx < 0 || monthIdx > 11 {
		return nil, false
	}
	entry, ok := t.byName[es.Fold(product)]
	if !ok || entry.months[monthIdx] == nil {
		return nil, false
	}
	return entry.months[monthIdx], true
}

// Products returns the product names present in the table.
func (t *Table) Products() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.byName))
	for _, e := range t.byName {
		names = append(names, e.name)
	}
	return names
}

func (t *Table) entry(name string) *productEntry {
	key := es.Fold(name)
	e, ok := t.byName[key]
	if !ok {
		e = &productEntry{name: name}
		t.byName[key] = e
	}
	return e
}

func (e *productEntry) month(idx int) *MonthlyRecord {
	if e.months[idx] == nil {
		e.months[idx] = &MonthlyRecord{Month: es.MonthName(idx)}
	}
	return e.months[idx]
}

// NormalizeTrend collapses trend spellings into ALTO / BAJO / NEUTRO.
func NormalizeTrend(raw string) string {
	switch es.Fold(raw) {
	case "alto", "alta", "high":
		return TrendHigh
	case "bajo", "baja", "low":
		return TrendLow
	default:
		return TrendNeutral
	}
}

// decodeList decodes a JSON document that is either a bare array or an
// object wrapping the array under a well-known key.
func decodeList(r io.Reader, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err == nil {
		return nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("neither array nor object: %w", err)
	}
	for _, key := range []string{"productos", "data", "items"} {
		if raw, ok := wrapper[key]; ok {
			return json.Unmarshal(raw, out)
		}
	}
	return fmt.Errorf("no product list found in document")
}
