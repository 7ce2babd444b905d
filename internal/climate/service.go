package climate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JuanD1P/AGRO-SABANA/internal/dates"
	"github.com/JuanD1P/AGRO-SABANA/internal/fetch"
)

const (
	defaultArchiveURL  = "https://archive-api.open-meteo.com/v1/era5"
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultClimateURL  = "https://climate-api.open-meteo.com/v1/climate"

	// Open-Meteo serves exact-date forecasts up to 16 days ahead.
	defaultHorizonDays = 16

	// Climatology baseline.
	climateStartYear = 1991
	climateEndYear   = 2020
	climateModel     = "ERA5"
)

// Daily variables requested from the archive and forecast endpoints, and the
// monthly variables requested from the climatology endpoint.
var (
	dailyVars = strings.Join([]string{
		"temperature_2m_max", "temperature_2m_min", "temperature_2m_mean",
		"relative_humidity_2m_mean", "precipitation_sum",
		"windspeed_10m_max", "windgusts_10m_max", "cloudcover_mean",
	}, ",")
	monthlyVars = strings.Join([]string{
		"temperature_2m_mean", "temperature_2m_max", "temperature_2m_min",
		"relative_humidity_2m_mean", "precipitation_sum",
		"windspeed_10m_mean", "cloudcover_mean",
	}, ",")
)

// ServiceConfig configures the climate source router. Zero values select
// production defaults; tests override URLs and Now.
type ServiceConfig struct {
	Client      *fetch.Client
	Now         func() time.Time
	HorizonDays int
	ArchiveURL  string
	ForecastURL string
	ClimateURL  string
}

// Service decides, per requested date, whether to query the historical
// archive, the short-range forecast, or the long-term monthly climatology.
type Service struct {
	cfg ServiceConfig
}

// NewService creates the router.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HorizonDays == 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = defaultArchiveURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = defaultForecastURL
	}
	if cfg.ClimateURL == "" {
		cfg.ClimateURL = defaultClimateURL
	}
	return &Service{cfg: cfg}
}

// SourceFor selects the dataset that can answer the given date: past dates
// hit the archive, near-future dates the forecast, and anything beyond the
// horizon only exists as a monthly climatological average.
func (s *Service) SourceFor(date time.Time) Source {
	now := s.cfg.Now()
	today := dates.AtNoon(now.Year(), now.Month(), now.Day())
	asked := dates.AtNoon(date.Year(), date.Month(), date.Day())

	diffDays := int(asked.Sub(today) / (24 * time.Hour))
	switch {
	case diffDays < 0:
		return SourceArchive
	case diffDays <= s.cfg.HorizonDays:
		return SourceForecast
	default:
		return SourceClimate
	}
}

// ResolveDaily fetches and normalizes the climate record for one location
// and date. It fails with ErrNoData when the upstream returns an empty
// series and with *UpstreamError on transport or HTTP failure.
func (s *Service) ResolveDaily(ctx context.Context, loc Location, date time.Time) (DailyReport, error) {
	source := s.SourceFor(date)

	var (
		metrics DailyMetrics
		err     error
	)
	switch source {
	case SourceArchive:
		metrics, err = s.fetchDaily(ctx, s.cfg.ArchiveURL, loc, date)
	case SourceForecast:
		metrics, err = s.fetchDaily(ctx, s.cfg.ForecastURL, loc, date)
	default:
		metrics, err = s.fetchClimatology(ctx, loc, date)
	}
	if err != nil {
		return DailyReport{}, err
	}

	return DailyReport{
		Source:   source,
		Location: loc,
		Date:     metrics.Date,
		Metrics:  metrics,
	}, nil
}

type dailyPayload struct {
	Daily struct {
		Time     []string   `json:"time"`
		TempMax  []*float64 `json:"temperature_2m_max"`
		TempMin  []*float64 `json:"temperature_2m_min"`
		TempMean []*float64 `json:"temperature_2m_mean"`
		Humidity []*float64 `json:"relative_humidity_2m_mean"`
		Precip   []*float64 `json:"precipitation_sum"`
		WindMax  []*float64 `json:"windspeed_10m_max"`
		GustMax  []*float64 `json:"windgusts_10m_max"`
		Cloud    []*float64 `json:"cloudcover_mean"`
	} `json:"daily"`
}

func (s *Service) fetchDaily(ctx context.Context, baseURL string, loc Location, date time.Time) (DailyMetrics, error) {
	ymd := dates.YMD(date)

	values := url.Values{}
	values.Set("latitude", formatCoord(loc.Lat))
	values.Set("longitude", formatCoord(loc.Lon))
	values.Set("start_date", ymd)
	values.Set("end_date", ymd)
	values.Set("daily", dailyVars)
	values.Set("timezone", "auto")

	var payload dailyPayload
	if err := s.client().GetJSON(ctx, baseURL+"?"+values.Encode(), &payload); err != nil {
		return DailyMetrics{}, toUpstream(err)
	}
	if len(payload.Daily.Time) == 0 {
		return DailyMetrics{}, fmt.Errorf("%w: %s", ErrNoData, ymd)
	}

	d := payload.Daily
	return DailyMetrics{
		Date:        d.Time[0],
		TempAvgC:    first(d.TempMean),
		TempMinC:    first(d.TempMin),
		TempMaxC:    first(d.TempMax),
		Humidity:    first(d.Humidity),
		PrecipMM:    first(d.Precip),
		WindKPH:     msToKPH(first(d.WindMax)),
		WindGustKPH: msToKPH(first(d.GustMax)),
		CloudCover:  first(d.Cloud),
	}, nil
}

type monthlyPayload struct {
	Monthly struct {
		Time     []string   `json:"time"`
		TempMean []*float64 `json:"temperature_2m_mean"`
		TempMax  []*float64 `json:"temperature_2m_max"`
		TempMin  []*float64 `json:"temperature_2m_min"`
		Humidity []*float64 `json:"relative_humidity_2m_mean"`
		Precip   []*float64 `json:"precipitation_sum"`
		WindMean []*float64 `json:"windspeed_10m_mean"`
		Cloud    []*float64 `json:"cloudcover_mean"`
	} `json:"monthly"`
}

// fetchClimatology returns the multi-year monthly average for the calendar
// month of the requested date. No exact-date data exists this far out.
func (s *Service) fetchClimatology(ctx context.Context, loc Location, date time.Time) (DailyMetrics, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(loc.Lat))
	values.Set("longitude", formatCoord(loc.Lon))
	values.Set("start_year", strconv.Itoa(climateStartYear))
	values.Set("end_year", strconv.Itoa(climateEndYear))
	values.Set("models", climateModel)
	values.Set("monthly", monthlyVars)

	var payload monthlyPayload
	if err := s.client().GetJSON(ctx, s.cfg.ClimateURL+"?"+values.Encode(), &payload); err != nil {
		return DailyMetrics{}, toUpstream(err)
	}
	if len(payload.Monthly.Time) == 0 {
		return DailyMetrics{}, fmt.Errorf("%w: no climatology series", ErrNoData)
	}

	month := fmt.Sprintf("-%02d", int(date.Month()))
	idx := -1
	for i, t := range payload.Monthly.Time {
		if strings.HasSuffix(t, month) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return DailyMetrics{}, fmt.Errorf("%w: month %s out of climatology range", ErrNoData, dates.YMD(date))
	}

	m := payload.Monthly
	return DailyMetrics{
		Date: dates.YMD(date),
		Note: fmt.Sprintf("Climatologia mensual %d-%d (promedio del mes seleccionado)",
			climateStartYear, climateEndYear),
		TempAvgC:   at(m.TempMean, idx),
		TempMinC:   at(m.TempMin, idx),
		TempMaxC:   at(m.TempMax, idx),
		Humidity:   at(m.Humidity, idx),
		PrecipMM:   at(m.Precip, idx),
		WindKPH:    msToKPH(at(m.WindMean, idx)),
		CloudCover: at(m.Cloud, idx),
	}, nil
}

func (s *Service) client() *fetch.Client {
	return s.cfg.Client
}

func first(vals []*float64) *float64 {
	return at(vals, 0)
}

func at(vals []*float64, idx int) *float64 {
	if idx < 0 || idx >= len(vals) {
		return nil
	}
	return vals[idx]
}

// msToKPH converts upstream wind speed from m/s to km/h.
func msToKPH(v *float64) *float64 {
	if v == nil {
		return nil
	}
	kph := *v * 3.6
	return &kph
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// toUpstream maps fetch-layer failures to the climate error taxonomy while
// letting context cancellation pass through untouched.
func toUpstream(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *fetch.StatusError
	if errors.As(err, &se) {
		return &UpstreamError{Status: se.Status, Message: se.Message}
	}
	return &UpstreamError{Message: err.Error()}
}
