package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
)

// MoenvProvider reads the national monitoring stations from the MOENV
// open-data catalog, where each station is published as a separate dataset
// paginated by offset/limit with server-side filter strings.
type MoenvProvider struct {
	name      string
	baseURL   string
	token     string
	datasets  map[string]string
	tz        *time.Location
	pageDelay time.Duration
	limit     int
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// NewMoenvProvider creates a client for the MOENV API. pageDelay separates
// consecutive page requests within one dataset.
func NewMoenvProvider(client *http.Client, token string, tz *time.Location, pageDelay time.Duration) *MoenvProvider {
	if tz == nil {
		tz = time.UTC
	}
	return &MoenvProvider{
		name:      "moenv",
		baseURL:   "https://data.moenv.gov.tw/api/v2",
		token:     token,
		datasets:  airquality.MoenvStations,
		tz:        tz,
		pageDelay: pageDelay,
		limit:     1000,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newBreaker("moenv"),
	}
}

func (p *MoenvProvider) Name() string {
	return p.name
}

type moenvPayload struct {
	Records []moenvRecord `json:"records"`
}

type moenvRecord struct {
	SiteName      string `json:"sitename"`
	MonitorDate   string `json:"monitordate"`
	ItemID        string `json:"itemid"`
	Concentration string `json:"concentration"`
	PM25          string `json:"pm2.5"`
	PM10          string `json:"pm10"`
	PublishTime   string `json:"publishtime"`
}

// rangeFilter builds the server-side filter expression: the monitordate
// window plus the PM2.5/PM10 item-code allow-list.
func rangeFilter(start, end time.Time) string {
	return fmt.Sprintf("monitordate,GR,%s 00:00:00|monitordate,LE,%s 23:59:59|itemid,EQ,%s,%s",
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		airquality.ItemIDPM25, airquality.ItemIDPM10)
}

// FetchRange pulls the filtered time series for every configured dataset. A
// failed page aborts pagination for its dataset only; pages already fetched
// are kept. An error is returned only when every dataset produced nothing
// because its first request failed.
func (p *MoenvProvider) FetchRange(ctx context.Context, start, end time.Time) ([]airquality.Reading, error) {
	filter := rangeFilter(start, end)

	// Stable iteration so request ordering does not depend on map order.
	ids := make([]string, 0, len(p.datasets))
	for id := range p.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		readings       []airquality.Reading
		failedDatasets int
		lastErr        error
	)

	for _, datasetID := range ids {
		station := p.datasets[datasetID]
		rs, err := p.fetchDataset(ctx, datasetID, station, filter)
		readings = append(readings, rs...)
		if err != nil {
			log.Printf("moenv: dataset %s (%s) aborted: %v", datasetID, station, err)
			if len(rs) == 0 {
				failedDatasets++
				lastErr = err
			}
		}
	}

	if len(p.datasets) > 0 && failedDatasets == len(p.datasets) {
		return readings, fmt.Errorf("all datasets failed: %w", lastErr)
	}
	return readings, nil
}

// fetchDataset walks one dataset's pages until a short or empty page marks
// the end.
func (p *MoenvProvider) fetchDataset(ctx context.Context, datasetID, station, filter string) ([]airquality.Reading, error) {
	var readings []airquality.Reading
	offset := 0

	for {
		payload, err := p.fetchPage(ctx, datasetID, filter, offset)
		if err != nil {
			return readings, err
		}
		if len(payload.Records) == 0 {
			break
		}

		for _, rec := range payload.Records {
			if r, ok := p.toReading(rec, station); ok {
				readings = append(readings, r)
			}
		}

		if len(payload.Records) < p.limit {
			break
		}
		offset += p.limit
		if err := sleep(ctx, p.pageDelay); err != nil {
			return readings, err
		}
	}

	return readings, nil
}

func (p *MoenvProvider) fetchPage(ctx context.Context, datasetID, filter string, offset int) (*moenvPayload, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api_key", p.token)
		values.Set("format", "json")
		values.Set("offset", strconv.Itoa(offset))
		values.Set("limit", strconv.Itoa(p.limit))
		values.Set("filters", filter)

		u := fmt.Sprintf("%s/%s?%s", p.baseURL, datasetID, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload moenvPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// toReading sanitizes one filtered record into a Reading. Records whose
// concentration is an invalid marker, unparseable, or out of range are
// dropped, as are unknown item codes.
func (p *MoenvProvider) toReading(rec moenvRecord, station string) (airquality.Reading, bool) {
	value, ok := airquality.CleanConcentration(rec.Concentration)
	if !ok {
		return airquality.Reading{}, false
	}

	ts, err := parseLocalTime(rec.MonitorDate, p.tz)
	if err != nil {
		return airquality.Reading{}, false
	}

	r := airquality.Reading{Station: station, Time: ts}
	switch rec.ItemID {
	case airquality.ItemIDPM25:
		r.PM25 = &value
	case airquality.ItemIDPM10:
		r.PM10 = &value
	default:
		return airquality.Reading{}, false
	}
	return r, true
}

// FetchCurrent reads the nationwide current-conditions dataset and keeps the
// rows matching the configured station names.
func (p *MoenvProvider) FetchCurrent(ctx context.Context) (map[string]airquality.CurrentReading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api_key", p.token)
		values.Set("format", "json")
		values.Set("limit", "100")

		u := fmt.Sprintf("%s/aqx_p_432?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload moenvPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	targets := make(map[string]bool, len(p.datasets))
	for _, station := range p.datasets {
		targets[station] = true
	}

	result := make(map[string]airquality.CurrentReading)
	for _, rec := range payload.Records {
		if !targets[rec.SiteName] {
			continue
		}

		var pm25, pm10 *float64
		if v, ok := airquality.CleanConcentration(rec.PM25); ok {
			pm25 = &v
		}
		if v, ok := airquality.CleanConcentration(rec.PM10); ok {
			pm10 = &v
		}
		if pm25 == nil && pm10 == nil {
			continue
		}

		ts, err := parseLocalTime(rec.PublishTime, p.tz)
		if err != nil {
			ts = time.Now().In(p.tz)
		}
		result[rec.SiteName] = airquality.CurrentReading{
			Station: rec.SiteName,
			PM25:    pm25,
			PM10:    pm10,
			Time:    ts,
		}
	}
	return result, nil
}

// parseLocalTime reads MOENV's naive local-time strings in the configured
// zone; the API is inconsistent about including seconds.
func parseLocalTime(s string, tz *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, s, tz); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
