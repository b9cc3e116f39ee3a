package airquality

import (
	"encoding/csv"
	"strconv"
	"strings"
	"testing"
	"time"
)

func ip(v int) *int { return &v }

func sampleTable() DailyTable {
	return DailyTable{
		{Station: "仁武", Date: "2025/10/01", PM25: ip(23), PM10: ip(45)},
		{Station: "南區上", Date: "2025/10/01", PM25: ip(31)},
		{Station: "仁武", Date: "2025/10/02", PM25: ip(12), PM10: ip(38)},
		{Station: "南區上", Date: "2025/10/02", PM25: ip(28), PM10: ip(60)},
	}
}

func TestFormatDailyTableROCDates(t *testing.T) {
	tz := mustZone(t)
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, tz)
	end := time.Date(2025, 10, 2, 0, 0, 0, 0, tz)

	msg := FormatDailyTable(sampleTable(), start, end)

	if !strings.Contains(msg, "查詢期間: 2025/10/01 ~ 2025/10/02") {
		t.Errorf("missing query period header:\n%s", msg)
	}
	// 2025 → ROC year 114; leading zeros dropped in the display date.
	if !strings.Contains(msg, "114/10/1") || !strings.Contains(msg, "114/10/2") {
		t.Errorf("missing ROC dates:\n%s", msg)
	}
	if strings.Contains(msg, "2025/10/01\n") {
		t.Errorf("Gregorian date leaked into data rows:\n%s", msg)
	}
	// 南區上 has no PM10 on 10/01.
	if !strings.Contains(msg, "--") {
		t.Errorf("missing placeholder for absent value:\n%s", msg)
	}
}

// Formatting is lossy only in precision already rounded at aggregation:
// re-parsing the table text recovers the same station set and values.
func TestFormatDailyTableRoundTrip(t *testing.T) {
	tz := mustZone(t)
	table := sampleTable()
	start := time.Date(2025, 10, 1, 0, 0, 0, 0, tz)
	end := time.Date(2025, 10, 2, 0, 0, 0, 0, tz)

	msg := FormatDailyTable(table, start, end)
	lines := strings.Split(msg, "\n")

	// Locate the header row listing station names.
	var stations []string
	var dataStart int
	for i, line := range lines {
		if strings.HasPrefix(line, "日期") {
			stations = strings.Fields(line)[1:]
			dataStart = i + 3 // skip pollutant sub-header and rule line
			break
		}
	}
	if want := []string{"仁武", "南區上"}; len(stations) != 2 || stations[0] != want[0] || stations[1] != want[1] {
		t.Fatalf("parsed stations = %v, want %v", stations, want)
	}

	parsed := make(map[string]map[string][2]string) // date → station → {pm25, pm10}
	for _, line := range lines[dataStart:] {
		fields := strings.Fields(line)
		if len(fields) != 1+2*len(stations) {
			continue
		}
		byStation := make(map[string][2]string)
		for i, s := range stations {
			byStation[s] = [2]string{fields[1+2*i], fields[2+2*i]}
		}
		parsed[fields[0]] = byStation
	}

	if len(parsed) != 2 {
		t.Fatalf("parsed %d data rows, want 2", len(parsed))
	}

	check := func(rocDate, station string, pm25, pm10 string) {
		got, ok := parsed[rocDate][station]
		if !ok {
			t.Fatalf("no parsed cell for %s %s", rocDate, station)
		}
		if got[0] != pm25 || got[1] != pm10 {
			t.Errorf("%s %s = %v, want [%s %s]", rocDate, station, got, pm25, pm10)
		}
	}
	check("114/10/1", "仁武", "23", "45")
	check("114/10/1", "南區上", "31", "--")
	check("114/10/2", "仁武", "12", "38")
	check("114/10/2", "南區上", "28", "60")
}

func TestFormatStatisticsMinMax(t *testing.T) {
	msg := FormatStatistics(sampleTable(), DefaultReportConfig())

	if !strings.Contains(msg, "【PM2.5】(法規標準: 30μg/m³)") {
		t.Errorf("missing PM2.5 standard header:\n%s", msg)
	}
	if !strings.Contains(msg, "【PM10】(法規標準: 75μg/m³)") {
		t.Errorf("missing PM10 standard header:\n%s", msg)
	}

	// 仁武 PM2.5 daily means are 23 and 12 → min 12, max 23.
	found := false
	for _, line := range strings.Split(msg, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 3 && fields[0] == "仁武" && fields[1] == "12" && fields[2] == "23" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("missing 仁武 min/max 12/23 line:\n%s", msg)
	}
}

func TestFormatStatisticsEmpty(t *testing.T) {
	if msg := FormatStatistics(nil, DefaultReportConfig()); msg != "" {
		t.Errorf("empty table produced statistics: %q", msg)
	}
}

func TestReportConfigLevel(t *testing.T) {
	cfg := DefaultReportConfig()
	cases := []struct {
		pm25 float64
		want string
	}{
		{10, "優良"}, {15, "優良"}, {16, "良好"}, {30, "良好"},
		{31, "普通"}, {50, "普通"}, {51, "不良"}, {100, "不良"}, {101, "非常不良"},
	}
	for _, c := range cases {
		if got := cfg.Level(c.pm25); got != c.want {
			t.Errorf("Level(%v) = %s, want %s", c.pm25, got, c.want)
		}
	}
}

func TestFormatSnapshot(t *testing.T) {
	tz := mustZone(t)
	ts := time.Date(2025, 10, 5, 14, 30, 0, 0, tz)

	snap := Snapshot{
		Taken: ts,
		Readings: map[string]CurrentReading{
			"仁武":  {Station: "仁武", PM25: fp(35.5), PM10: fp(80), Time: ts},
			"南區上": {Station: "南區上", PM25: fp(12), Time: ts},
		},
	}

	msg := FormatSnapshot(snap, DefaultReportConfig())

	if !strings.Contains(msg, "PM2.5: 35.5 μg/m³ (超標)") {
		t.Errorf("missing PM2.5 exceedance flag:\n%s", msg)
	}
	if !strings.Contains(msg, "PM10:  80.0 μg/m³ (超標)") {
		t.Errorf("missing PM10 exceedance flag:\n%s", msg)
	}
	if !strings.Contains(msg, "PM2.5: 12.0 μg/m³  優良") {
		t.Errorf("missing level label for clean reading:\n%s", msg)
	}
	// 南區上 has no PM10.
	if !strings.Contains(msg, "PM10:  -- μg/m³") {
		t.Errorf("missing placeholder PM10:\n%s", msg)
	}
	// Priority order: 仁武 block before 南區上.
	if strings.Index(msg, "【仁武】") > strings.Index(msg, "【南區上】") {
		t.Errorf("stations out of priority order:\n%s", msg)
	}
}

func TestFormatSnapshotEmpty(t *testing.T) {
	msg := FormatSnapshot(Snapshot{}, DefaultReportConfig())
	if !strings.Contains(msg, "無法取得資料") {
		t.Errorf("unexpected empty-snapshot message: %q", msg)
	}
}

func TestFormatCSV(t *testing.T) {
	out, err := FormatCSV(sampleTable())
	if err != nil {
		t.Fatalf("FormatCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("re-parsing csv failed: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected header + 4 rows, got %d", len(records))
	}
	if records[0][0] != "station" || records[0][3] != "pm10" {
		t.Errorf("unexpected header: %v", records[0])
	}
	// Second row is 南區上 10/01 with no PM10.
	if records[2][0] != "南區上" || records[2][3] != "" {
		t.Errorf("unexpected row: %v", records[2])
	}
	if v, _ := strconv.Atoi(records[1][2]); v != 23 {
		t.Errorf("unexpected pm25 in first data row: %v", records[1])
	}
}
