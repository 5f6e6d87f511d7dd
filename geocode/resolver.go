// Package geocode turns issue coordinates into a municipal area label.
package geocode

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultURL       = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "civicwatch-be/1.0"
	DefaultTimeout   = 5 * time.Second
)

// Resolver maps a coordinate pair to an area name. ok is false when nothing
// usable came back; callers never see transport errors.
type Resolver interface {
	Resolve(ctx context.Context, lat, lon float64) (area string, ok bool)
}

// NominatimResolver queries a Nominatim-compatible /reverse endpoint.
type NominatimResolver struct {
	client *resty.Client
}

func NewNominatimResolver(baseURL, userAgent string, timeout time.Duration) *NominatimResolver {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	return &NominatimResolver{client: client}
}

type reverseResponse struct {
	Error   string `json:"error"`
	Address struct {
		Suburb        string `json:"suburb"`
		CityDistrict  string `json:"city_district"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
	} `json:"address"`
}

// label picks the most local named area.
func (r reverseResponse) label() string {
	a := r.Address
	for _, candidate := range []string{a.Suburb, a.CityDistrict, a.Neighbourhood, a.City, a.Town, a.Village} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func (n *NominatimResolver) Resolve(ctx context.Context, lat, lon float64) (string, bool) {
	var body reverseResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetResult(&body).
		ForceContentType("application/json").
		SetQueryParams(map[string]string{
			"format": "jsonv2",
			"lat":    strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":    strconv.FormatFloat(lon, 'f', -1, 64),
		}).
		Get("/reverse")
	if err != nil {
		log.Printf("[GEOCODE] reverse lookup (%v, %v) failed: %v", lat, lon, err)
		return "", false
	}
	if resp.StatusCode() != http.StatusOK {
		log.Printf("[GEOCODE] reverse lookup (%v, %v) returned %d", lat, lon, resp.StatusCode())
		return "", false
	}

	if body.Error != "" {
		return "", false
	}
	area := body.label()
	return area, area != ""
}
