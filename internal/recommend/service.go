// Package recommend implements the ranking pipeline: harvest-date
// projection, deduplicated climate resolution, multi-factor scoring and
// top-N selection.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/JuanD1P/AGRO-SABANA/internal/climate"
	"github.com/JuanD1P/AGRO-SABANA/internal/dates"
	"github.com/JuanD1P/AGRO-SABANA/internal/es"
	"github.com/JuanD1P/AGRO-SABANA/internal/fetch"
	"github.com/JuanD1P/AGRO-SABANA/internal/market"
	"github.com/JuanD1P/AGRO-SABANA/internal/products"
	"github.com/JuanD1P/AGRO-SABANA/internal/scoring"
	"github.com/JuanD1P/AGRO-SABANA/pkg/metrics"
)

// Quality describes how a scoring factor was obtained.
type Quality string

const (
	// QualityOK: the factor was computed from resolved data.
	QualityOK Quality = "ok"
	// QualityUnknown: the input needed for the factor was missing (no cycle
	// length, unparseable sowing date, no table entry). Contributes 0.
	QualityUnknown Quality = "unknown"
	// QualityUnavailable: the data source failed after retries. Contributes 0.
	QualityUnavailable Quality = "unavailable"
)

// FactorQuality reports, per factor, whether the contribution is real data
// or an explicit degradation. No factor is ever silently zeroed.
type FactorQuality struct {
	Climate Quality `json:"climate"`
	Market  Quality `json:"market"`
}

// ScoredProduct is one ranked candidate.
type ScoredProduct struct {
	ProductID       int64          `json:"producto_id"`
	Product         string         `json:"producto"`
	Popularity      int            `json:"cont"`
	HarvestDate     string         `json:"fecha_cosecha,omitempty"`
	QueryDate       string         `json:"fecha_consulta,omitempty"`
	Month           string         `json:"mes,omitempty"`
	Source          climate.Source `json:"fuente,omitempty"`
	TempAvgC        *float64       `json:"temp_avg_c,omitempty"`
	Humidity        *float64       `json:"humedad,omitempty"`
	TempInRange     *bool          `json:"temp_ok"`
	HumidityInRange *bool          `json:"humedad_ok"`
	ClimateScore    int            `json:"puntos_clima"`
	MarketRank      int            `json:"puesto"`
	Penalty         float64        `json:"penalizacion"`
	FinalScore      float64        `json:"puntos_finales"`
	Quality         FactorQuality  `json:"data_quality"`
}

// Result is the answer to one ranking request.
type Result struct {
	RequestID     string           `json:"request_id"`
	Municipality  string           `json:"municipio"`
	Location      climate.Location `json:"location"`
	SowingDate    string           `json:"fecha_siembra,omitempty"`
	ReferenceYear int              `json:"reference_year"`
	Considered    int              `json:"considered"`
	Products      []ScoredProduct  `json:"productos"`
}

// ClimateResolver is the slice of the climate service the aggregator needs.
type ClimateResolver interface {
	ResolveDaily(ctx context.Context, loc climate.Location, date time.Time) (climate.DailyReport, error)
}

// Config wires the aggregator's collaborators. Market may be nil: the market
// factor then degrades to 0 for every product.
type Config struct {
	Products products.Source
	Climate  ClimateResolver
	Geocoder climate.Resolver
	Market   *market.Table
	Metrics  *metrics.Collector

	ReferenceYear    int     // default 2024
	Concurrency      int     // default 3
	PopularityWeight float64 // default 0.4
	DefaultTopN      int     // default 3
}

// Service computes product rankings for a municipality and sowing date.
type Service struct {
	cfg      Config
	collator *collate.Collator
}

// NewService fills config defaults and builds the Spanish collator used for
// deterministic tie-breaking.
func NewService(cfg Config) *Service {
	if cfg.ReferenceYear == 0 {
		cfg.ReferenceYear = 2024
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if cfg.PopularityWeight == 0 {
		cfg.PopularityWeight = 0.4
	}
	if cfg.DefaultTopN == 0 {
		cfg.DefaultTopN = 3
	}
	return &Service{
		cfg:      cfg,
		collator: collate.New(language.Spanish, collate.IgnoreCase),
	}
}

// TopN ranks the municipality's products for the given sowing date and
// returns the best n. Only a missing product list or an unresolvable
// location fail the request; every per-product problem degrades that
// product's factors instead.
func (s *Service) TopN(ctx context.Context, municipality, sowingInput string, n int) (*Result, error) {
	start := time.Now()
	if n <= 0 {
		n = s.cfg.DefaultTopN
	}

	muni, err := s.cfg.Products.MunicipalityProducts(ctx, municipality)
	if err != nil {
		s.cfg.Metrics.RecordRecommendation(time.Since(start).Seconds(), "error")
		return nil, err
	}

	loc, err := s.cfg.Geocoder.Resolve(ctx, municipality)
	if err != nil {
		s.cfg.Metrics.RecordRecommendation(time.Since(start).Seconds(), "error")
		return nil, err
	}

	sowing, sowErr := dates.ParseFlexible(sowingInput)
	if sowErr != nil {
		// The request still runs: products are ranked on whatever factors
		// remain known (here, only the popularity penalty).
		log.Printf("recommend: unparseable sowing date %q for %s: %v", sowingInput, municipality, sowErr)
	}

	type candidate struct {
		product products.Product
		harvest time.Time
		query   string // harvest projected onto the reference year, "" if unknown
	}

	candidates := make([]candidate, 0, len(muni.Products))
	seen := make(map[string]bool)
	var queryDates []string
	for _, p := range muni.Products {
		c := candidate{product: p}
		if sowErr == nil && p.CycleDays != nil {
			c.harvest = dates.AddDays(sowing, *p.CycleDays)
			c.query = dates.YMD(dates.ProjectToYear(c.harvest, s.cfg.ReferenceYear))
			if !seen[c.query] {
				seen[c.query] = true
				queryDates = append(queryDates, c.query)
			}
		}
		candidates = append(candidates, c)
	}
	sort.Strings(queryDates)

	// One fetch per distinct query date; shared harvest dates are deduplicated.
	reports := fetch.MapBounded(ctx, queryDates, s.cfg.Concurrency,
		func(ctx context.Context, ymd string) (climate.DailyReport, error) {
			d, err := dates.ParseFlexible(ymd)
			if err != nil {
				return climate.DailyReport{}, err
			}
			return s.cfg.Climate.ResolveDaily(ctx, loc, d)
		})
	byDate := make(map[string]fetch.Result[climate.DailyReport], len(queryDates))
	for i, ymd := range queryDates {
		byDate[ymd] = reports[i]
	}

	scored := make([]ScoredProduct, 0, len(candidates))
	for _, c := range candidates {
		sp := ScoredProduct{
			ProductID:  c.product.ID,
			Product:    c.product.Name,
			Popularity: c.product.Popularity,
			Quality:    FactorQuality{Climate: QualityUnknown, Market: QualityUnknown},
		}

		if c.query != "" {
			sp.HarvestDate = dates.YMD(c.harvest)
			sp.QueryDate = c.query
			sp.Month = es.MonthName(dates.MonthIndex(c.harvest))

			res := byDate[c.query]
			if res.Err != nil {
				sp.Quality.Climate = QualityUnavailable
				log.Printf("recommend: climate unavailable for %s on %s: %v", c.product.Name, c.query, res.Err)
			} else {
				m := res.Value.Metrics
				sp.Source = res.Value.Source
				sp.TempAvgC = m.TempAvgC
				sp.Humidity = m.Humidity

				tOK, tPts := scoring.Range(m.TempAvgC, c.product.TempMin, c.product.TempMax)
				hOK, hPts := scoring.Range(m.Humidity, c.product.HumidityMin, c.product.HumidityMax)
				sp.TempInRange = tOK
				sp.HumidityInRange = hOK
				sp.ClimateScore = tPts + hPts
				sp.Quality.Climate = QualityOK
				if tOK == nil && hOK == nil {
					sp.Quality.Climate = QualityUnknown
				}
			}

			if rank, ok := s.cfg.Market.Rank(c.product.Name, dates.MonthIndex(c.harvest)); ok {
				sp.MarketRank = rank
				sp.Quality.Market = QualityOK
			}
		}

		sp.Penalty = s.cfg.PopularityWeight * float64(sp.Popularity)
		sp.FinalScore = float64(sp.ClimateScore+sp.MarketRank) - sp.Penalty
		scored = append(scored, sp)
	}

	// Final score descending; ties by product name ascending under Spanish
	// collation. The stable sort keeps equal-name duplicates deterministic.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].FinalScore != scored[j].FinalScore {
			return scored[i].FinalScore > scored[j].FinalScore
		}
		return s.collator.CompareString(scored[i].Product, scored[j].Product) < 0
	})

	result := &Result{
		RequestID:     uuid.NewString(),
		Municipality:  muni.Name,
		Location:      loc,
		ReferenceYear: s.cfg.ReferenceYear,
		Considered:    len(scored),
	}
	if sowErr == nil {
		result.SowingDate = dates.YMD(sowing)
	}
	if n > len(scored) {
		n = len(scored)
	}
	result.Products = append([]ScoredProduct(nil), scored[:n]...)
	s.cfg.Metrics.RecordRecommendation(time.Since(start).Seconds(), "ok")
	return result, nil
}

// Prewarm resolves today's climate for a municipality so that interactive
// requests hit the fetch layer's session cache.
func (s *Service) Prewarm(ctx context.Context, municipality string) error {
	loc, err := s.cfg.Geocoder.Resolve(ctx, municipality)
	if err != nil {
		return fmt.Errorf("prewarm %s: %w", municipality, err)
	}
	now := time.Now()
	today := dates.ProjectToYear(dates.AtNoon(now.Year(), now.Month(), now.Day()), s.cfg.ReferenceYear)
	if _, err := s.cfg.Climate.ResolveDaily(ctx, loc, today); err != nil && !errors.Is(err, climate.ErrNoData) {
		return fmt.Errorf("prewarm %s: %w", municipality, err)
	}
	return nil
}
