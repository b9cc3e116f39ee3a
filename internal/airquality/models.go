package airquality

import (
	"time"
)

// Reading is one normalized measurement instant for one station, regardless
// of which provider produced it. MOENV rows carry a single pollutant, so one
// of the two values may be absent; WeatherLink rows usually carry both.
type Reading struct {
	Station string    `json:"station"`
	Time    time.Time `json:"time"` // zone-aware, already in the display zone
	PM25    *float64  `json:"pm25,omitempty"`
	PM10    *float64  `json:"pm10,omitempty"`
}

// CurrentReading is the latest observation for one station.
type CurrentReading struct {
	Station string    `json:"station"`
	PM25    *float64  `json:"pm25,omitempty"`
	PM10    *float64  `json:"pm10,omitempty"`
	Time    time.Time `json:"time"`
}

// Snapshot is one merged multi-station view of current conditions,
// keyed by canonical station name.
type Snapshot struct {
	Taken    time.Time                 `json:"taken"`
	Readings map[string]CurrentReading `json:"readings"`
}

// DailyRow is one (station, calendar date) aggregate. Dates are rendered as
// "YYYY/MM/DD" in the display zone. A nil value means the station produced no
// valid reading for that pollutant on that day.
type DailyRow struct {
	Station string `json:"station"`
	Date    string `json:"date"`
	PM25    *int   `json:"pm25,omitempty"`
	PM10    *int   `json:"pm10,omitempty"`
}

// DailyTable holds aggregate rows ordered by date ascending, then by the
// fixed station priority.
type DailyTable []DailyRow

// Stations returns the distinct station names present in the table, in the
// fixed priority order.
func (t DailyTable) Stations() []string {
	seen := make(map[string]bool, len(t))
	for _, row := range t {
		seen[row.Station] = true
	}
	var out []string
	for _, s := range StationOrder {
		if seen[s] {
			out = append(out, s)
		}
	}
	return out
}

// Dates returns the distinct dates present in the table, ascending.
func (t DailyTable) Dates() []string {
	var out []string
	seen := make(map[string]bool)
	for _, row := range t {
		if !seen[row.Date] {
			seen[row.Date] = true
			out = append(out, row.Date)
		}
	}
	return out
}

// LevelBreakpoint is one step of the qualitative PM2.5 scale: values up to
// Max (inclusive) get Label. Values above every breakpoint get the table's
// overflow label.
type LevelBreakpoint struct {
	Max   float64
	Label string
}

// ReportConfig carries the regulatory standards and the qualitative scale.
// Thresholds differ between regulation revisions, so they are configuration
// rather than constants.
type ReportConfig struct {
	PM25Standard float64
	PM10Standard float64

	PM25Levels    []LevelBreakpoint
	OverflowLevel string
}

// DefaultReportConfig returns the canonical standards (24h averages) and the
// qualitative scale currently in use.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		PM25Standard: 30,
		PM10Standard: 75,
		PM25Levels: []LevelBreakpoint{
			{Max: 15, Label: "優良"},
			{Max: 30, Label: "良好"},
			{Max: 50, Label: "普通"},
			{Max: 100, Label: "不良"},
		},
		OverflowLevel: "非常不良",
	}
}

// Level looks up the qualitative label for a PM2.5 value.
func (c ReportConfig) Level(pm25 float64) string {
	for _, bp := range c.PM25Levels {
		if pm25 <= bp.Max {
			return bp.Label
		}
	}
	return c.OverflowLevel
}
