// Package datamall is a small client for the LTA DataMall REST API.
package datamall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PageSize is the fixed number of records DataMall returns per page.
const PageSize = 500

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to DataMall with a subscriber account key.
type Client struct {
	http       HTTPClient
	baseURL    string
	accountKey string
	timeout    time.Duration
}

// New creates a Client. baseURL is the OData root, without a trailing slash.
func New(client HTTPClient, baseURL, accountKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:       client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountKey: accountKey,
		timeout:    timeout,
	}
}

// NextBus is one of the three upcoming buses of a service.
type NextBus struct {
	EstimatedArrival string `json:"EstimatedArrival"`
	Load             string `json:"Load"`
	Feature          string `json:"Feature"`
	Type             string `json:"Type"`
}

// ServiceArrival holds the next three buses of a service at a stop.
type ServiceArrival struct {
	ServiceNo string  `json:"ServiceNo"`
	Operator  string  `json:"Operator"`
	NextBus   NextBus `json:"NextBus"`
	NextBus2  NextBus `json:"NextBus2"`
	NextBus3  NextBus `json:"NextBus3"`
}

// Arrivals is the BusArrivalv2 response.
type Arrivals struct {
	BusStopCode string           `json:"BusStopCode"`
	Services    []ServiceArrival `json:"Services"`
}

// AffectedSegment describes a disrupted stretch of a train line.
type AffectedSegment struct {
	Line                string `json:"Line"`
	Direction           string `json:"Direction"`
	Stations            string `json:"Stations"`
	FreePublicBus       string `json:"FreePublicBus"`
	FreeMRTShuttle      string `json:"FreeMRTShuttle"`
	MRTShuttleDirection string `json:"MRTShuttleDirection"`
}

// AlertMessage is a free-text operator update.
type AlertMessage struct {
	Content     string `json:"Content"`
	CreatedDate string `json:"CreatedDate"`
}

// TrainAlerts is the TrainServiceAlerts payload. Status 1 means normal service.
type TrainAlerts struct {
	Status           int               `json:"Status"`
	AffectedSegments []AffectedSegment `json:"AffectedSegments"`
	Message          []AlertMessage    `json:"Message"`
}

// BusStop is a record of the BusStops dataset.
type BusStop struct {
	BusStopCode string  `json:"BusStopCode"`
	RoadName    string  `json:"RoadName"`
	Description string  `json:"Description"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
}

// BusRoute is a record of the BusRoutes dataset.
type BusRoute struct {
	ServiceNo    string `json:"ServiceNo"`
	Operator     string `json:"Operator"`
	Direction    int    `json:"Direction"`
	StopSequence int    `json:"StopSequence"`
	BusStopCode  string `json:"BusStopCode"`
	WDFirstBus   string `json:"WD_FirstBus"`
	WDLastBus    string `json:"WD_LastBus"`
	SATFirstBus  string `json:"SAT_FirstBus"`
	SATLastBus   string `json:"SAT_LastBus"`
	SUNFirstBus  string `json:"SUN_FirstBus"`
	SUNLastBus   string `json:"SUN_LastBus"`
}

// Arrivals returns live arrival estimates for a bus stop.
func (c *Client) Arrivals(ctx context.Context, stopCode string) (*Arrivals, error) {
	q := url.Values{"BusStopCode": {stopCode}}
	var out Arrivals
	if err := c.get(ctx, "BusArrivalv2", q, &out); err != nil {
		return nil, fmt.Errorf("bus arrivals %s: %w", stopCode, err)
	}
	return &out, nil
}

// TrainAlerts returns the current train service alert state.
func (c *Client) TrainAlerts(ctx context.Context) (*TrainAlerts, error) {
	var out struct {
		Value TrainAlerts `json:"value"`
	}
	if err := c.get(ctx, "TrainServiceAlerts", nil, &out); err != nil {
		return nil, fmt.Errorf("train alerts: %w", err)
	}
	return &out.Value, nil
}

// BusStops returns the full bus stop dataset, reading every page.
func (c *Client) BusStops(ctx context.Context) ([]BusStop, error) {
	stops, err := pages[BusStop](ctx, c, "BusStops")
	if err != nil {
		return nil, fmt.Errorf("bus stops: %w", err)
	}
	return stops, nil
}

// BusRoutes returns the full bus route dataset, reading every page.
func (c *Client) BusRoutes(ctx context.Context) ([]BusRoute, error) {
	routes, err := pages[BusRoute](ctx, c, "BusRoutes")
	if err != nil {
		return nil, fmt.Errorf("bus routes: %w", err)
	}
	return routes, nil
}

// pages follows $skip until a short page is returned.
func pages[T any](ctx context.Context, c *Client, dataset string) ([]T, error) {
	var all []T
	for skip := 0; ; skip += PageSize {
		var page struct {
			Value []T `json:"value"`
		}
		q := url.Values{"$skip": {strconv.Itoa(skip)}}
		if err := c.get(ctx, dataset, q, &page); err != nil {
			return nil, fmt.Errorf("page at %d: %w", skip, err)
		}
		all = append(all, page.Value...)
		if len(page.Value) < PageSize {
			return all, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("AccountKey", c.accountKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16*1024*1024))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
