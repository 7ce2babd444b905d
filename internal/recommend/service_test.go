package recommend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/JuanD1P/AGRO-SABANA/internal/climate"
	"github.com/JuanD1P/AGRO-SABANA/internal/dates"
	"github.com/JuanD1P/AGRO-SABANA/internal/market"
	"github.com/JuanD1P/AGRO-SABANA/internal/products"
)

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

// fakeClimate serves canned metrics per query date and can fail selected dates.
type fakeClimate struct {
	temp, humidity float64
	failDates      map[string]error
	calls          map[string]int
}

func (c *fakeClimate) ResolveDaily(_ context.Context, loc climate.Location, date time.Time) (climate.DailyReport, error) {
	ymd := dates.YMD(date)
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[ymd]++
	if err, ok := c.failDates[ymd]; ok {
		return climate.DailyReport{}, err
	}
	return climate.DailyReport{
		Source:   climate.SourceArchive,
		Location: loc,
		Date:     ymd,
		Metrics:  climate.DailyMetrics{Date: ymd, TempAvgC: f(c.temp), Humidity: f(c.humidity)},
	}, nil
}

type fakeGeo struct{ fail bool }

func (g fakeGeo) Resolve(_ context.Context, place string) (climate.Location, error) {
	if g.fail {
		return climate.Location{}, fmt.Errorf("%w: %q", climate.ErrLocationNotFound, place)
	}
	return climate.Location{Name: place, Lat: 4.86, Lon: -74.06}, nil
}

func product(id int64, name string, cycle int, cont int) products.Product {
	return products.Product{
		ID: id, Name: name, CycleDays: i(cycle),
		TempMin: f(10), TempMax: f(20), HumidityMin: f(60), HumidityMax: f(90),
		Popularity: cont,
	}
}

func testSource(prods ...products.Product) products.Source {
	return products.NewMemorySource([]products.Municipality{
		{ID: 1, Name: "Chía", Products: prods},
	})
}

func testMarket(t *testing.T) *market.Table {
	t.Helper()
	tbl := market.New()
	err := tbl.LoadRanking(strings.NewReader(`[
		{"nombre": "Maíz",      "ranking": {"mayo": 8}},
		{"nombre": "Papa",      "ranking": {"mayo": 3}},
		{"nombre": "Fresa",     "ranking": {"mayo": 3}},
		{"nombre": "Lechuga",   "ranking": {"mayo": 3}},
		{"nombre": "Zanahoria", "ranking": {"mayo": 1}}
	]`))
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	return tbl
}

func newTestService(t *testing.T, src products.Source, clim ClimateResolver) *Service {
	t.Helper()
	return NewService(Config{
		Products: src,
		Climate:  clim,
		Geocoder: fakeGeo{},
		Market:   testMarket(t),
	})
}

func TestTopNTruncatesToThree(t *testing.T) {
	src := testSource(
		product(1, "Maíz", 90, 0),
		product(2, "Papa", 90, 0),
		product(3, "Fresa", 90, 0),
		product(4, "Lechuga", 90, 0),
		product(5, "Zanahoria", 90, 0),
	)
	svc := newTestService(t, src, &fakeClimate{temp: 15, humidity: 75})

	res, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 3)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if res.Considered != 5 {
		t.Errorf("considered = %d, want 5", res.Considered)
	}
	if len(res.Products) != 3 {
		t.Fatalf("got %d products, want 3", len(res.Products))
	}
	for k := 1; k < len(res.Products); k++ {
		if res.Products[k].FinalScore > res.Products[k-1].FinalScore {
			t.Errorf("products not sorted descending at index %d", k)
		}
	}
	// All share climate score +6; rank 8 puts Maíz first, Zanahoria (rank 1) is cut.
	if res.Products[0].Product != "Maíz" {
		t.Errorf("top product = %s, want Maíz", res.Products[0].Product)
	}
	for _, sp := range res.Products {
		if sp.Product == "Zanahoria" {
			t.Error("Zanahoria should be excluded from the top 3")
		}
	}
}

func TestHarvestProjectionAndDeduplication(t *testing.T) {
	clim := &fakeClimate{temp: 15, humidity: 75}
	// Same cycle length: both products share one harvest date.
	src := testSource(product(1, "Maíz", 90, 0), product(2, "Papa", 90, 0))
	svc := newTestService(t, src, clim)

	res, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 2)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}

	for _, sp := range res.Products {
		if sp.HarvestDate != "2025-05-30" {
			t.Errorf("%s harvest = %s, want 2025-05-30", sp.Product, sp.HarvestDate)
		}
		if sp.QueryDate != "2024-05-30" {
			t.Errorf("%s query date = %s, want 2024-05-30 (reference year)", sp.Product, sp.QueryDate)
		}
		if sp.Month != "Mayo" {
			t.Errorf("%s month = %s, want Mayo", sp.Product, sp.Month)
		}
	}
	if got := clim.calls["2024-05-30"]; got != 1 {
		t.Errorf("shared harvest date fetched %d times, want 1", got)
	}
}

func TestAggregationDeterminism(t *testing.T) {
	src := testSource(
		product(1, "Maíz", 90, 2),
		product(2, "Papa", 120, 1),
		product(3, "Fresa", 60, 0),
	)
	svc := newTestService(t, src, &fakeClimate{temp: 15, humidity: 75})

	order := func() []string {
		res, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 10)
		if err != nil {
			t.Fatalf("TopN: %v", err)
		}
		names := make([]string, len(res.Products))
		for i, sp := range res.Products {
			names[i] = sp.Product
		}
		return names
	}

	first := order()
	for k := 0; k < 5; k++ {
		if got := order(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d order %v differs from first run %v", k, got, first)
		}
	}
}

func TestTieBreakByNameAscending(t *testing.T) {
	// Identical cycle, ranges and counters: Fresa, Lechuga and Papa all tie
	// at rank 3 and must come out alphabetically.
	src := testSource(
		product(2, "Papa", 90, 0),
		product(3, "Lechuga", 90, 0),
		product(4, "Fresa", 90, 0),
	)
	svc := newTestService(t, src, &fakeClimate{temp: 15, humidity: 75})

	res, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 3)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	want := []string{"Fresa", "Lechuga", "Papa"}
	for k, sp := range res.Products {
		if sp.Product != want[k] {
			t.Errorf("position %d = %s, want %s", k, sp.Product, want[k])
		}
	}
}

func TestPopularityPenaltyMonotonicity(t *testing.T) {
	clim := &fakeClimate{temp: 15, humidity: 75}
	var prev float64
	for k, cont := range []int{0, 1, 5, 10} {
		svc := newTestService(t, testSource(product(1, "Maíz", 90, cont)), clim)
		res, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 1)
		if err != nil {
			t.Fatalf("TopN: %v", err)
		}
		sp := res.Products[0]
		if want := 0.4 * float64(cont); sp.Penalty != want {
			t.Errorf("cont=%d penalty = %v, want %v", cont, sp.Penalty, want)
		}
		if k > 0 && sp.FinalScore >= prev {
			t.Errorf("cont=%d final score %v did not decrease from %v", cont, sp.FinalScore, prev)
		}
		prev = sp.FinalScore
	}
}

func TestClimateFailureDegradesNotAborts(t *testing.T) {
	clim := &fakeClimate{
		temp: 15, humidity: 75,
		failDates: map[string]error{"2024-05-30": &climate.UpstreamError{Status: 503, Message: "unavailable"}},
	}
	src := testSource(product(1, "Maíz", 90, 0), product(2, "Papa", 60, 0))
	svc := newTestService(t, src, clim)

	res, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 5)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if len(res.Products) != 2 {
		t.Fatalf("got %d products, want 2", len(res.Products))
	}

	var maiz, papa *ScoredProduct
	for k := range res.Products {
		switch res.Products[k].Product {
		case "Maíz":
			maiz = &res.Products[k]
		case "Papa":
			papa = &res.Products[k]
		}
	}
	if maiz == nil || papa == nil {
		t.Fatal("missing products in result")
	}

	if maiz.Quality.Climate != QualityUnavailable {
		t.Errorf("Maíz climate quality = %s, want unavailable", maiz.Quality.Climate)
	}
	if maiz.ClimateScore != 0 || maiz.TempInRange != nil {
		t.Errorf("Maíz climate contribution = %d (%v), want 0 with nil predicate", maiz.ClimateScore, maiz.TempInRange)
	}
	if maiz.MarketRank != 8 {
		t.Errorf("Maíz market rank = %d, want 8 despite climate failure", maiz.MarketRank)
	}
	if papa.Quality.Climate != QualityOK || papa.ClimateScore != 6 {
		t.Errorf("Papa = %s/%d, want ok/6 (sibling unaffected)", papa.Quality.Climate, papa.ClimateScore)
	}
}

func TestMalformedSowingDateStillRanks(t *testing.T) {
	src := testSource(product(1, "Maíz", 90, 5), product(2, "Papa", 90, 0))
	svc := newTestService(t, src, &fakeClimate{temp: 15, humidity: 75})

	res, err := svc.TopN(context.Background(), "Chía", "not a date", 5)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	if res.SowingDate != "" {
		t.Errorf("sowing date = %q, want empty", res.SowingDate)
	}
	if len(res.Products) != 2 {
		t.Fatalf("got %d products, want 2", len(res.Products))
	}
	// Only the popularity penalty separates them.
	if res.Products[0].Product != "Papa" || res.Products[1].Product != "Maíz" {
		t.Errorf("order = %s, %s; want Papa first (no penalty)", res.Products[0].Product, res.Products[1].Product)
	}
	for _, sp := range res.Products {
		if sp.Quality.Climate != QualityUnknown || sp.Quality.Market != QualityUnknown {
			t.Errorf("%s quality = %+v, want unknown/unknown", sp.Product, sp.Quality)
		}
		if sp.ClimateScore != 0 || sp.MarketRank != 0 {
			t.Errorf("%s has non-zero contributions for unknown factors", sp.Product)
		}
	}
}

func TestNilMarketTableDegrades(t *testing.T) {
	svc := NewService(Config{
		Products: testSource(product(1, "Maíz", 90, 0)),
		Climate:  &fakeClimate{temp: 15, humidity: 75},
		Geocoder: fakeGeo{},
		Market:   nil,
	})
	res, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 1)
	if err != nil {
		t.Fatalf("TopN: %v", err)
	}
	sp := res.Products[0]
	if sp.MarketRank != 0 || sp.Quality.Market != QualityUnknown {
		t.Errorf("market = %d/%s, want 0/unknown with no table", sp.MarketRank, sp.Quality.Market)
	}
	if sp.ClimateScore != 6 {
		t.Errorf("climate score = %d, want 6", sp.ClimateScore)
	}
}

func TestFatalErrors(t *testing.T) {
	clim := &fakeClimate{temp: 15, humidity: 75}

	svc := NewService(Config{
		Products: testSource(product(1, "Maíz", 90, 0)),
		Climate:  clim,
		Geocoder: fakeGeo{fail: true},
		Market:   nil,
	})
	if _, err := svc.TopN(context.Background(), "Chía", "2025-03-01", 3); !errors.Is(err, climate.ErrLocationNotFound) {
		t.Errorf("geocoding miss error = %v, want ErrLocationNotFound", err)
	}

	svc = newTestService(t, testSource(product(1, "Maíz", 90, 0)), clim)
	if _, err := svc.TopN(context.Background(), "Nowhere", "2025-03-01", 3); !errors.Is(err, products.ErrNotFound) {
		t.Errorf("unknown municipality error = %v, want products.ErrNotFound", err)
	}
}
