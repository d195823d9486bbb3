package coordination

import (
	"github.com/BenjaminPelletier/dss/internal/geo"
	"github.com/BenjaminPelletier/dss/internal/store"
)

const testS2Level = 13

func newTestServices() (*SubscriptionService, *OperationService) {
	s := store.NewMemory()
	cfg := geo.Config{MinS2Level: testS2Level, MaxS2Level: testS2Level}
	return &SubscriptionService{Store: s, GeoIndex: cfg}, &OperationService{Store: s, GeoIndex: cfg}
}

func circleExtents(lat, lng, radiusM, altLo, altHi float64, start, end string) map[string]any {
	volume := map[string]any{
		"outline_circle": map[string]any{
			"type": "Feature",
			"geometry": map[string]any{
				"type":        "Point",
				"coordinates": []any{lng, lat},
			},
			"properties": map[string]any{
				"radius": map[string]any{"units": "M", "value": radiusM},
			},
		},
		"altitude_lower": map[string]any{"reference": "W84", "units": "M", "value": altLo},
		"altitude_upper": map[string]any{"reference": "W84", "units": "M", "value": altHi},
	}
	extents := map[string]any{"volume": volume}
	if start != "" {
		extents["time_start"] = map[string]any{"format": "RFC3339", "value": start}
	}
	if end != "" {
		extents["time_end"] = map[string]any{"format": "RFC3339", "value": end}
	}
	return extents
}

func boundedExtents(lat, lng, radiusM float64) map[string]any {
	return circleExtents(lat, lng, radiusM, 0, 200, "2026-01-01T00:00:00Z", "2026-01-01T02:00:00Z")
}
