package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yuhsiangw/air-quality-aggregation/internal/airquality"
)

// WeatherLinkProvider reads the private AirLink sensors through the
// WeatherLink v2 API. Every request carries an HMAC-SHA256 signature over the
// plaintext parameters, keyed with the API secret.
type WeatherLinkProvider struct {
	name      string
	baseURL   string
	apiKey    string
	apiSecret string
	stationID string
	stations  map[int64]string
	tz        *time.Location
	dayDelay  time.Duration
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// NewWeatherLinkProvider creates a client for one station credential set.
// dayDelay separates consecutive per-day historic requests.
func NewWeatherLinkProvider(client *http.Client, apiKey, apiSecret, stationID string, tz *time.Location, dayDelay time.Duration) *WeatherLinkProvider {
	if tz == nil {
		tz = time.UTC
	}
	return &WeatherLinkProvider{
		name:      "weatherlink",
		baseURL:   "https://api.weatherlink.com/v2",
		apiKey:    apiKey,
		apiSecret: apiSecret,
		stationID: stationID,
		stations:  airquality.AirLinkStations,
		tz:        tz,
		dayDelay:  dayDelay,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newBreaker("weatherlink"),
	}
}

func (p *WeatherLinkProvider) Name() string {
	return p.name
}

// signHistoric builds the hex HMAC-SHA256 digest over the request parameters
// in the API's fixed field order, names and values concatenated with no
// separators. t changes per request, so signatures are never reused.
func signHistoric(apiKey, apiSecret string, t int64, stationID string, startTS, endTS int64) string {
	data := "api-key" + apiKey +
		"end-timestamp" + strconv.FormatInt(endTS, 10) +
		"start-timestamp" + strconv.FormatInt(startTS, 10) +
		"station-id" + stationID +
		"t" + strconv.FormatInt(t, 10)
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// signCurrent is the current-conditions variant: no window timestamps.
func signCurrent(apiKey, apiSecret string, t int64, stationID string) string {
	data := "api-key" + apiKey +
		"station-id" + stationID +
		"t" + strconv.FormatInt(t, 10)
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

type sensorPayload struct {
	Sensors []struct {
		LSID int64          `json:"lsid"`
		Data []sensorRecord `json:"data"`
	} `json:"sensors"`
}

type sensorRecord struct {
	TS       int64    `json:"ts"`
	PM25Avg  *float64 `json:"pm_2p5_avg"`
	PM25     *float64 `json:"pm_2p5"`
	PM25Last *float64 `json:"pm_2p5_last"`
	PM10Avg  *float64 `json:"pm_10_avg"`
	PM10     *float64 `json:"pm_10"`
	PM10Last *float64 `json:"pm_10_last"`
}

// historicPM prefers the averaged field: it represents the archive interval
// better than the instantaneous value.
func historicPM(avg, plain, last *float64) *float64 {
	if avg != nil {
		return avg
	}
	if plain != nil {
		return plain
	}
	return last
}

// currentPM prefers the freshest field.
func currentPM(last, plain *float64) *float64 {
	if last != nil {
		return last
	}
	return plain
}

// FetchRange retrieves readings for an inclusive date range. The endpoint
// only handles single windows reliably, so the range is walked one calendar
// day at a time with a throttle delay in between. A failed day is logged and
// skipped; an error is returned only when every day failed.
func (p *WeatherLinkProvider) FetchRange(ctx context.Context, start, end time.Time) ([]airquality.Reading, error) {
	startDT := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, p.tz)
	endDT := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, p.tz).AddDate(0, 0, 1)

	var (
		readings   []airquality.Reading
		days       int
		failedDays int
		lastErr    error
	)

	for cur := startDT; cur.Before(endDT); {
		next := cur.AddDate(0, 0, 1)
		if next.After(endDT) {
			next = endDT
		}
		days++

		payload, err := p.fetchHistoric(ctx, cur.Unix(), next.Unix())
		if err != nil {
			log.Printf("weatherlink: day %s failed: %v", cur.Format("2006-01-02"), err)
			failedDays++
			lastErr = err
		} else {
			readings = append(readings, p.collectReadings(payload)...)
		}

		cur = next
		if cur.Before(endDT) {
			if err := sleep(ctx, p.dayDelay); err != nil {
				return readings, err
			}
		}
	}

	if days > 0 && failedDays == days {
		return readings, fmt.Errorf("all %d day requests failed: %w", days, lastErr)
	}
	return readings, nil
}

func (p *WeatherLinkProvider) fetchHistoric(ctx context.Context, startTS, endTS int64) (*sensorPayload, error) {
	buildRequest := func() (*http.Request, error) {
		t := time.Now().Unix()
		values := url.Values{}
		values.Set("api-key", p.apiKey)
		values.Set("t", strconv.FormatInt(t, 10))
		values.Set("start-timestamp", strconv.FormatInt(startTS, 10))
		values.Set("end-timestamp", strconv.FormatInt(endTS, 10))
		values.Set("api-signature", signHistoric(p.apiKey, p.apiSecret, t, p.stationID, startTS, endTS))

		u := fmt.Sprintf("%s/historic/%s?%s", p.baseURL, p.stationID, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload sensorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// collectReadings keeps records from sensors in the LSID table whose PM
// fields carry at least one value.
func (p *WeatherLinkProvider) collectReadings(payload *sensorPayload) []airquality.Reading {
	var readings []airquality.Reading
	for _, sensor := range payload.Sensors {
		station, ok := p.stations[sensor.LSID]
		if !ok {
			continue
		}
		for _, rec := range sensor.Data {
			if rec.TS == 0 {
				continue
			}
			pm25 := historicPM(rec.PM25Avg, rec.PM25, rec.PM25Last)
			pm10 := historicPM(rec.PM10Avg, rec.PM10, rec.PM10Last)
			if pm25 == nil && pm10 == nil {
				continue
			}
			readings = append(readings, airquality.Reading{
				Station: station,
				Time:    time.Unix(rec.TS, 0).In(p.tz),
				PM25:    pm25,
				PM10:    pm10,
			})
		}
	}
	return readings
}

// currentStrategy is one way of obtaining the latest readings. Strategies
// are tried in order; the first one returning data wins.
type currentStrategy struct {
	name  string
	fetch func(ctx context.Context) (map[string]airquality.CurrentReading, error)
}

// FetchCurrent tries the current-conditions endpoint first and falls back to
// a one-hour historic window when it yields nothing.
func (p *WeatherLinkProvider) FetchCurrent(ctx context.Context) (map[string]airquality.CurrentReading, error) {
	strategies := []currentStrategy{
		{name: "current-conditions", fetch: p.fetchCurrentConditions},
		{name: "recent-historic", fetch: p.fetchRecentHistoric},
	}

	var lastErr error
	for _, st := range strategies {
		result, err := st.fetch(ctx)
		if err != nil {
			log.Printf("weatherlink: %s strategy failed: %v", st.name, err)
			lastErr = err
			continue
		}
		if len(result) > 0 {
			return result, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no airlink sensor data available")
}

func (p *WeatherLinkProvider) fetchCurrentConditions(ctx context.Context) (map[string]airquality.CurrentReading, error) {
	buildRequest := func() (*http.Request, error) {
		t := time.Now().Unix()
		values := url.Values{}
		values.Set("api-key", p.apiKey)
		values.Set("t", strconv.FormatInt(t, 10))
		values.Set("api-signature", signCurrent(p.apiKey, p.apiSecret, t, p.stationID))

		u := fmt.Sprintf("%s/current/%s?%s", p.baseURL, p.stationID, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload sensorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	result := make(map[string]airquality.CurrentReading)
	for _, sensor := range payload.Sensors {
		station, ok := p.stations[sensor.LSID]
		if !ok || len(sensor.Data) == 0 {
			continue
		}
		latest := sensor.Data[0]

		pm25 := currentPM(latest.PM25Last, latest.PM25)
		pm10 := currentPM(latest.PM10Last, latest.PM10)
		if pm25 == nil && pm10 == nil {
			continue
		}

		ts := time.Now().In(p.tz)
		if latest.TS != 0 {
			ts = time.Unix(latest.TS, 0).In(p.tz)
		}
		result[station] = airquality.CurrentReading{
			Station: station,
			PM25:    pm25,
			PM10:    pm10,
			Time:    ts,
		}
	}
	return result, nil
}

// fetchRecentHistoric covers the last hour and keeps the newest record per
// station.
func (p *WeatherLinkProvider) fetchRecentHistoric(ctx context.Context) (map[string]airquality.CurrentReading, error) {
	now := time.Now()
	payload, err := p.fetchHistoric(ctx, now.Add(-time.Hour).Unix(), now.Unix())
	if err != nil {
		return nil, err
	}

	result := make(map[string]airquality.CurrentReading)
	for _, r := range p.collectReadings(payload) {
		prev, ok := result[r.Station]
		if ok && !r.Time.After(prev.Time) {
			continue
		}
		result[r.Station] = airquality.CurrentReading{
			Station: r.Station,
			PM25:    r.PM25,
			PM10:    r.PM10,
			Time:    r.Time,
		}
	}
	return result, nil
}
