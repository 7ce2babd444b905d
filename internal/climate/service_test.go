package climate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JuanD1P/AGRO-SABANA/internal/dates"
	"github.com/JuanD1P/AGRO-SABANA/internal/fetch"
)

func fixedNow(t *testing.T) func() time.Time {
	t.Helper()
	return func() time.Time { return time.Date(2025, time.June, 1, 9, 30, 0, 0, time.UTC) }
}

func testClient(srv *httptest.Server) *fetch.Client {
	return fetch.NewClient(fetch.Config{
		Client:  srv.Client(),
		Backoff: fetch.BackoffConfig{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
}

func TestSourceForRouting(t *testing.T) {
	svc := NewService(ServiceConfig{Now: fixedNow(t)})

	cases := []struct {
		date string
		want Source
	}{
		{"2025-05-15", SourceArchive},
		{"2025-05-31", SourceArchive},
		{"2025-06-01", SourceForecast}, // today
		{"2025-06-10", SourceForecast},
		{"2025-06-17", SourceForecast}, // horizon boundary, day 16
		{"2025-06-18", SourceClimate},
		{"2026-01-01", SourceClimate},
	}
	for _, tc := range cases {
		d, err := dates.ParseFlexible(tc.date)
		if err != nil {
			t.Fatalf("bad test date %q: %v", tc.date, err)
		}
		if got := svc.SourceFor(d); got != tc.want {
			t.Errorf("SourceFor(%s) = %s, want %s", tc.date, got, tc.want)
		}
	}
}

func TestResolveDailyArchiveNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start_date") != "2025-05-15" || q.Get("end_date") != "2025-05-15" {
			t.Errorf("unexpected date params: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"daily": {
			"time": ["2025-05-15"],
			"temperature_2m_max": [24.1],
			"temperature_2m_min": [11.3],
			"temperature_2m_mean": [17.6],
			"relative_humidity_2m_mean": [78],
			"precipitation_sum": [4.2],
			"windspeed_10m_max": [10],
			"windgusts_10m_max": [null],
			"cloudcover_mean": [62]
		}}`)
	}))
	defer srv.Close()

	svc := NewService(ServiceConfig{Client: testClient(srv), Now: fixedNow(t), ArchiveURL: srv.URL})

	d, _ := dates.ParseFlexible("2025-05-15")
	report, err := svc.ResolveDaily(context.Background(), Location{Name: "Chia", Lat: 4.86, Lon: -74.06}, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Source != SourceArchive {
		t.Errorf("source = %s, want archive", report.Source)
	}
	m := report.Metrics
	if m.TempAvgC == nil || *m.TempAvgC != 17.6 {
		t.Errorf("temp_avg_c = %v, want 17.6", m.TempAvgC)
	}
	if m.WindKPH == nil || *m.WindKPH != 36 {
		t.Errorf("wind_kph = %v, want 36 (10 m/s converted)", m.WindKPH)
	}
	if m.WindGustKPH != nil {
		t.Errorf("wind_gust_kph = %v, want nil for null upstream value", *m.WindGustKPH)
	}
	if m.Humidity == nil || *m.Humidity != 78 {
		t.Errorf("humidity = %v, want 78", m.Humidity)
	}
}

func TestResolveDailyEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"daily": {"time": []}}`)
	}))
	defer srv.Close()

	svc := NewService(ServiceConfig{Client: testClient(srv), Now: fixedNow(t), ArchiveURL: srv.URL})

	d, _ := dates.ParseFlexible("2025-05-15")
	_, err := svc.ResolveDaily(context.Background(), Location{Lat: 1, Lon: 1}, d)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want ErrNoData", err)
	}
}

func TestResolveDailyClimatologyPicksMonth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("models"); got != "ERA5" {
			t.Errorf("models = %q, want ERA5", got)
		}
		fmt.Fprint(w, `{"monthly": {
			"time": ["1991-01","1991-02","1991-03","1991-04","1991-05","1991-06",
			         "1991-07","1991-08","1991-09","1991-10","1991-11","1991-12"],
			"temperature_2m_mean": [13.1,13.4,13.9,14.0,13.8,13.2,12.8,12.9,13.2,13.5,13.6,13.3],
			"relative_humidity_2m_mean": [80,79,81,83,84,82,80,78,79,82,84,82],
			"windspeed_10m_mean": [2,2,2,2,2,2,2,2,2,2,2,2]
		}}`)
	}))
	defer srv.Close()

	svc := NewService(ServiceConfig{Client: testClient(srv), Now: fixedNow(t), ClimateURL: srv.URL})

	d, _ := dates.ParseFlexible("2026-01-01")
	report, err := svc.ResolveDaily(context.Background(), Location{Lat: 4.86, Lon: -74.06}, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Source != SourceClimate {
		t.Errorf("source = %s, want climate", report.Source)
	}
	if report.Metrics.TempAvgC == nil || *report.Metrics.TempAvgC != 13.1 {
		t.Errorf("temp_avg_c = %v, want january average 13.1", report.Metrics.TempAvgC)
	}
	if report.Metrics.Note == "" {
		t.Error("expected climatology note on monthly-average record")
	}
	if report.Metrics.WindKPH == nil || *report.Metrics.WindKPH != 7.2 {
		t.Errorf("wind_kph = %v, want 7.2", report.Metrics.WindKPH)
	}
}

func TestResolveDailyUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"reason": "invalid coordinates"}`)
	}))
	defer srv.Close()

	svc := NewService(ServiceConfig{Client: testClient(srv), Now: fixedNow(t), ArchiveURL: srv.URL})

	d, _ := dates.ParseFlexible("2025-05-15")
	_, err := svc.ResolveDaily(context.Background(), Location{Lat: 999, Lon: 999}, d)

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %v, want *UpstreamError", err)
	}
	if ue.Status != http.StatusBadRequest || ue.Message != "invalid coordinates" {
		t.Errorf("UpstreamError = %+v, want status 400 with upstream reason", ue)
	}
}

func TestParseLatLonLiteral(t *testing.T) {
	loc, ok := parseLatLon(" 4.86 , -74.06 ")
	if !ok {
		t.Fatal("expected literal lat,lon to parse")
	}
	if loc.Lat != 4.86 || loc.Lon != -74.06 {
		t.Errorf("parsed %+v", loc)
	}
	if _, ok := parseLatLon("Chia"); ok {
		t.Error("place name parsed as coordinates")
	}
}
