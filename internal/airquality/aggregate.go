package airquality

import (
	"math"
	"sort"
	"time"
)

// DateLayout is the canonical textual form of a calendar date in aggregates
// and reports.
const DateLayout = "2006/01/02"

type dailyKey struct {
	station string
	date    string
}

type dailyAccum struct {
	pm25Sum float64
	pm25N   int
	pm10Sum float64
	pm10N   int
}

// AggregateDaily folds readings from any number of providers into one table
// of per-station, per-day means, rounded to the nearest whole μg/m³. The
// calendar date of a reading is taken in the reading's own zone (providers
// normalize into the display zone before emitting). Input order does not
// affect the result.
//
// A station with no valid reading on a day simply has no row for that day; a
// row with readings for only one pollutant keeps the other nil.
func AggregateDaily(readings []Reading) DailyTable {
	accum := make(map[dailyKey]*dailyAccum)

	for _, r := range readings {
		if r.PM25 == nil && r.PM10 == nil {
			continue
		}
		key := dailyKey{station: r.Station, date: r.Time.Format(DateLayout)}
		a, ok := accum[key]
		if !ok {
			a = &dailyAccum{}
			accum[key] = a
		}
		if r.PM25 != nil {
			a.pm25Sum += *r.PM25
			a.pm25N++
		}
		if r.PM10 != nil {
			a.pm10Sum += *r.PM10
			a.pm10N++
		}
	}

	table := make(DailyTable, 0, len(accum))
	for key, a := range accum {
		row := DailyRow{Station: key.station, Date: key.date}
		if a.pm25N > 0 {
			v := int(math.Round(a.pm25Sum / float64(a.pm25N)))
			row.PM25 = &v
		}
		if a.pm10N > 0 {
			v := int(math.Round(a.pm10Sum / float64(a.pm10N)))
			row.PM10 = &v
		}
		table = append(table, row)
	}

	sortTable(table)
	return table
}

// FilterRange drops rows outside [start, end]. Day-boundary request windows
// can pull in records from adjacent days, so aggregates are trimmed back to
// the requested range before reporting.
func FilterRange(table DailyTable, start, end time.Time) DailyTable {
	lo := start.Format(DateLayout)
	hi := end.Format(DateLayout)

	out := make(DailyTable, 0, len(table))
	for _, row := range table {
		if row.Date >= lo && row.Date <= hi {
			out = append(out, row)
		}
	}
	return out
}

// stationRank positions a station within the fixed priority order; unknown
// stations sort last.
func stationRank(name string) int {
	for i, s := range StationOrder {
		if s == name {
			return i
		}
	}
	return len(StationOrder)
}

func sortTable(table DailyTable) {
	sort.Slice(table, func(i, j int) bool {
		if table[i].Date != table[j].Date {
			return table[i].Date < table[j].Date
		}
		return stationRank(table[i].Station) < stationRank(table[j].Station)
	})
}
