package climate

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/kelvins/geocoder"

	"github.com/JuanD1P/AGRO-SABANA/internal/fetch"
)

// Resolver turns a free-form place input into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, place string) (Location, error)
}

var latLonRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*$`)

// parseLatLon recognizes a literal "lat,lon" pair, which skips geocoding.
func parseLatLon(place string) (Location, bool) {
	m := latLonRe.FindStringSubmatch(place)
	if m == nil {
		return Location{}, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lon, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return Location{}, false
	}
	return Location{Name: fmt.Sprintf("%v,%v", lat, lon), Lat: lat, Lon: lon}, true
}

const defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

// OpenMeteoGeocoder resolves place names through the Open-Meteo geocoding
// API, taking the first result.
type OpenMeteoGeocoder struct {
	client  *fetch.Client
	baseURL string
}

// NewOpenMeteoGeocoder creates the default geocoder.
func NewOpenMeteoGeocoder(client *fetch.Client) *OpenMeteoGeocoder {
	return &OpenMeteoGeocoder{client: client, baseURL: defaultGeocodingURL}
}

func (g *OpenMeteoGeocoder) Resolve(ctx context.Context, place string) (Location, error) {
	if loc, ok := parseLatLon(place); ok {
		return loc, nil
	}

	values := url.Values{}
	values.Set("name", place)
	values.Set("count", "1")
	values.Set("language", "es")
	values.Set("format", "json")

	var payload struct {
		Results []struct {
			Name        string  `json:"name"`
			Latitude    float64 `json:"latitude"`
			Longitude   float64 `json:"longitude"`
			Admin1      string  `json:"admin1"`
			CountryCode string  `json:"country_code"`
		} `json:"results"`
	}
	if err := g.client.GetJSON(ctx, g.baseURL+"?"+values.Encode(), &payload); err != nil {
		return Location{}, fmt.Errorf("geocoding %q: %w", place, err)
	}
	if len(payload.Results) == 0 {
		return Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, place)
	}

	r := payload.Results[0]
	name := r.Name
	if r.Admin1 != "" {
		name += ", " + r.Admin1
	}
	if r.CountryCode != "" {
		name += ", " + r.CountryCode
	}
	return Location{Name: name, Lat: r.Latitude, Lon: r.Longitude}, nil
}

// GoogleGeocoder resolves place names through the Google Maps geocoding API.
// Used instead of Open-Meteo's geocoder when an API key is configured.
type GoogleGeocoder struct {
	country string
}

// NewGoogleGeocoder sets the package-level API key and returns the resolver.
// country biases results (e.g. "Colombia"); empty means no bias.
func NewGoogleGeocoder(apiKey, country string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{country: country}
}

func (g *GoogleGeocoder) Resolve(_ context.Context, place string) (Location, error) {
	if loc, ok := parseLatLon(place); ok {
		return loc, nil
	}

	addr := geocoder.Address{City: place, Country: g.country}
	res, err := geocoder.Geocoding(addr)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %q: %v", ErrLocationNotFound, place, err)
	}
	return Location{Name: place, Lat: res.Latitude, Lon: res.Longitude}, nil
}
