package airquality

// Station identity is a closed, static set: two private AirLink sensors on
// the WeatherLink network and two national MOENV stations. There is no
// dynamic station registration.

// AirLinkStations maps a WeatherLink sensor LSID to its canonical station
// name. Sensors absent from this table are ignored.
var AirLinkStations = map[int64]string{
	652269: "南區上",
	655484: "南區下",
}

// MoenvStations maps a MOENV open-data dataset ID to its canonical station
// name. Each monitoring station is published as a separate dataset.
var MoenvStations = map[string]string{
	"AQX_P_237": "仁武",
	"AQX_P_241": "楠梓",
}

// MOENV pollutant item codes used in dataset filters.
const (
	ItemIDPM25 = "33"
	ItemIDPM10 = "4"
)

// StationOrder is the fixed display priority: national stations first, then
// the private sensors.
var StationOrder = []string{"仁武", "楠梓", "南區上", "南區下"}
