package airquality

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const divider = "━━━━━━━━━━━━━━━"

// FormatDailyTable renders the aggregate as a fixed-width text table: one row
// per date, one PM2.5/PM10 column pair per station, stations in priority
// order. Dates are displayed in the ROC calendar (Gregorian year minus 1911);
// the conversion is textual only and never feeds back into grouping. Missing
// cells render as "--".
func FormatDailyTable(table DailyTable, start, end time.Time) string {
	if len(table) == 0 {
		return "查詢期間無資料"
	}

	stations := table.Stations()
	dates := table.Dates()

	cells := make(map[dailyKey]DailyRow, len(table))
	for _, row := range table {
		cells[dailyKey{station: row.Station, date: row.Date}] = row
	}

	var b strings.Builder
	fmt.Fprintf(&b, "查詢期間: %s ~ %s\n\n", start.Format(DateLayout), end.Format(DateLayout))
	b.WriteString("每日平均值\n")
	b.WriteString(divider + "\n\n")

	b.WriteString(pad("日期", 10))
	for _, s := range stations {
		b.WriteString(pad(s, 12))
	}
	b.WriteString("\n")
	b.WriteString("     " + strings.Repeat(" PM2.5 PM10  ", len(stations)) + "\n")
	b.WriteString(strings.Repeat("─", 10+12*len(stations)) + "\n")

	for _, date := range dates {
		b.WriteString(pad(rocDate(date), 10))
		for _, s := range stations {
			row := cells[dailyKey{station: s, date: date}]
			fmt.Fprintf(&b, " %s  %s ", cell(row.PM25), cell(row.PM10))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FormatStatistics renders per-station min/max of the daily means over the
// whole reported range, against the regulatory 24h standards.
func FormatStatistics(table DailyTable, cfg ReportConfig) string {
	if len(table) == 0 {
		return ""
	}

	stations := table.Stations()

	var b strings.Builder
	b.WriteString("\n" + divider + "\n")
	b.WriteString("統計摘要\n")
	b.WriteString(divider + "\n\n")

	writeSection := func(title string, standard float64, pick func(DailyRow) *int) {
		fmt.Fprintf(&b, "【%s】(法規標準: %.0fμg/m³)\n", title, standard)
		b.WriteString("測站    最小  最大\n")
		b.WriteString(strings.Repeat("─", 20) + "\n")
		for _, s := range stations {
			minV, maxV, ok := minMax(table, s, pick)
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "%s %s  %s\n", pad(s, 6), rightAlign(minV), rightAlign(maxV))
		}
	}

	writeSection("PM2.5", cfg.PM25Standard, func(r DailyRow) *int { return r.PM25 })
	b.WriteString("\n")
	writeSection("PM10", cfg.PM10Standard, func(r DailyRow) *int { return r.PM10 })

	b.WriteString("\n" + divider + "\n")
	b.WriteString("資料來源：AirLink、環保署")
	return b.String()
}

// FormatSnapshot renders a merged current-conditions view: one block per
// station in priority order, exceedances flagged against the standards, and a
// qualitative level looked up from the PM2.5 breakpoint table.
func FormatSnapshot(snap Snapshot, cfg ReportConfig) string {
	if len(snap.Readings) == 0 {
		return "無法取得資料，請稍後再試"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "查詢時間: %s\n\n", snap.Taken.Format("01/02 15:04"))
	b.WriteString("最新空氣品質\n")
	b.WriteString(divider + "\n\n")

	for _, station := range StationOrder {
		r, ok := snap.Readings[station]
		if !ok {
			continue
		}

		fmt.Fprintf(&b, "【%s】\n", station)

		if r.PM25 != nil {
			exceed := ""
			if *r.PM25 > cfg.PM25Standard {
				exceed = " (超標)"
			}
			fmt.Fprintf(&b, "  PM2.5: %.1f μg/m³%s  %s\n", *r.PM25, exceed, cfg.Level(*r.PM25))
		} else {
			b.WriteString("  PM2.5: -- μg/m³\n")
		}

		if r.PM10 != nil {
			exceed := ""
			if *r.PM10 > cfg.PM10Standard {
				exceed = " (超標)"
			}
			fmt.Fprintf(&b, "  PM10:  %.1f μg/m³%s\n", *r.PM10, exceed)
		} else {
			b.WriteString("  PM10:  -- μg/m³\n")
		}

		if !r.Time.IsZero() {
			fmt.Fprintf(&b, "  資料時間: %s\n", r.Time.Format("01/02 15:04"))
		}
		b.WriteString("\n")
	}

	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "法規標準（24小時平均值）\n• PM2.5 ≤ %.0f μg/m³\n• PM10  ≤ %.0f μg/m³\n\n", cfg.PM25Standard, cfg.PM10Standard)
	b.WriteString("資料來源：AirLink、環保署")
	return b.String()
}

// FormatCSV renders the aggregate as CSV for the dashboard export, one row
// per (station, date), empty fields for missing values.
func FormatCSV(table DailyTable) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"station", "date", "pm25", "pm10"}); err != nil {
		return "", err
	}
	for _, row := range table {
		rec := []string{row.Station, row.Date, "", ""}
		if row.PM25 != nil {
			rec[2] = strconv.Itoa(*row.PM25)
		}
		if row.PM10 != nil {
			rec[3] = strconv.Itoa(*row.PM10)
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// rocDate converts "2025/10/01" into the ROC display form "114/10/1".
// Only the year component shifts; month and day lose leading zeros.
func rocDate(date string) string {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return date
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return date
	}
	month, _ := strconv.Atoi(parts[1])
	day, _ := strconv.Atoi(parts[2])
	return fmt.Sprintf("%d/%d/%d", year-1911, month, day)
}

func cell(v *int) string {
	if v == nil {
		return " --"
	}
	return rightAlign(*v)
}

func rightAlign(v int) string {
	return fmt.Sprintf("%3d", v)
}

// pad right-pads s with spaces to the given rune width. Byte-based %-Ns
// padding misaligns columns for CJK station names.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func minMax(table DailyTable, station string, pick func(DailyRow) *int) (int, int, bool) {
	var minV, maxV int
	found := false
	for _, row := range table {
		if row.Station != station {
			continue
		}
		v := pick(row)
		if v == nil {
			continue
		}
		if !found || *v < minV {
			minV = *v
		}
		if !found || *v > maxV {
			maxV = *v
		}
		found = true
	}
	return minV, maxV, found
}
