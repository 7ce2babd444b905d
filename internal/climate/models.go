// Package climate routes a (location, date) query to the Open-Meteo dataset
// that can answer it and normalizes the heterogeneous responses into one
// canonical daily-metrics record.
package climate

import (
	"errors"
	"fmt"
)

// Source identifies which upstream dataset produced a record.
type Source string

const (
	// SourceArchive is the ERA5 historical archive (past dates).
	SourceArchive Source = "archive"
	// SourceForecast is the short-range forecast (up to the horizon).
	SourceForecast Source = "forecast"
	// SourceClimate is the long-term monthly climatology (beyond the horizon).
	SourceClimate Source = "climate"
)

// Location is a resolved place.
type Location struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// DailyMetrics is the canonical normalized record. Fields are pointers
// because any metric may be absent upstream; absent never becomes zero.
type DailyMetrics struct {
	Date        string   `json:"date"`
	Note        string   `json:"note,omitempty"`
	TempAvgC    *float64 `json:"temp_avg_c"`
	TempMinC    *float64 `json:"temp_min_c"`
	TempMaxC    *float64 `json:"temp_max_c"`
	Humidity    *float64 `json:"humidity"`
	PrecipMM    *float64 `json:"precip_mm"`
	WindKPH     *float64 `json:"wind_kph"`
	WindGustKPH *float64 `json:"wind_gust_kph,omitempty"`
	CloudCover  *float64 `json:"cloudcover"`
}

// DailyReport is the full answer for one (location, date) query.
type DailyReport struct {
	Source   Source       `json:"source"`
	Location Location     `json:"location"`
	Date     string       `json:"date"`
	Metrics  DailyMetrics `json:"metrics"`
}

var (
	// ErrNoData means the upstream answered with an empty series for the date.
	ErrNoData = errors.New("no climate data for date")
	// ErrLocationNotFound means geocoding produced no result for the place.
	ErrLocationNotFound = errors.New("location not found")
)

// UpstreamError is a transport or HTTP failure from the weather provider,
// surfaced after the fetch layer has exhausted its retries.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream error (http %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}
