package transform

import "olistetl/internal/dataset"

// Brazil's bounding box. Coordinates outside it are flagged, not dropped;
// downstream consumers decide filtering policy.
const (
	minLat = -33.0
	maxLat = 5.0
	minLng = -73.0
	maxLng = -32.0
)

// ValidateGeolocation flags each geolocation row with is_valid_coordinate:
// true iff latitude and longitude are both present and inside Brazil's
// bounding box. Tables without coordinate columns pass through unchanged.
func ValidateGeolocation(geo *dataset.Table) *dataset.Table {
	if !geo.Has("geolocation_lat") || !geo.Has("geolocation_lng") {
		return geo
	}

	n := geo.NumRows()
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		lat, okLat := geo.FloatAt(i, "geolocation_lat")
		lng, okLng := geo.FloatAt(i, "geolocation_lng")
		vals[i] = okLat && okLng &&
			lat >= minLat && lat <= maxLat &&
			lng >= minLng && lng <= maxLng
	}

	out, err := geo.WithColumn(dataset.Column{Name: "is_valid_coordinate", Type: dataset.Bool, Vals: vals})
	if err != nil {
		return geo
	}
	return out
}
