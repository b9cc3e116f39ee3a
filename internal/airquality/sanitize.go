package airquality

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuhsiangw/air-quality-aggregation/internal/common"
)

// invalidMarkers are the tokens MOENV instruments emit instead of a numeric
// concentration (maintenance, calibration, no data, ...). Matching is by
// substring for the non-empty markers, so e.g. "12#" is also rejected. That
// makes the "A" marker over-broad for any value textually containing an A;
// this matches the upstream data-cleaning convention and is intentional.
var invalidMarkers = []string{"#", "*", "x", "A", "NR", "ND", "-"}

// CleanConcentration validates one raw concentration value from the MOENV
// API and returns it as a float, or false if the value is missing, marked
// invalid, unparseable, or outside the plausible [0, 1000] range. It never
// panics on unexpected input.
func CleanConcentration(raw any) (float64, bool) {
	if raw == nil {
		return 0, false
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		if v == 0 {
			return 0, false
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		if v == 0 {
			return 0, false
		}
		s = strconv.Itoa(v)
	case json.Number:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}

	s = strings.TrimSpace(s)
	if s == "" || common.HasAny(s, invalidMarkers...) {
		return 0, false
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if val < 0 || val > 1000 {
		return 0, false
	}
	return val, true
}
