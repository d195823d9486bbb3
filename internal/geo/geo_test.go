package geo

import (
	"testing"
	"time"

	"github.com/golang/geo/s2"
)

func circleExtents(lat, lng, radiusM float64) map[string]any {
	return map[string]any{
		"volume": map[string]any{
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
			"altitude_lower": map[string]any{"reference": "W84", "units": "M", "value": 0.0},
			"altitude_upper": map[string]any{"reference": "W84", "units": "M", "value": 100.0},
		},
		"time_start": map[string]any{"format": "RFC3339", "value": "2026-01-01T00:00:00Z"},
		"time_end":   map[string]any{"format": "RFC3339", "value": "2026-01-01T01:00:00Z"},
	}
}

func TestExpandVolume4_Circle(t *testing.T) {
	vol4, err := ExpandVolume4(circleExtents(37.8, -122.4, 500), 13, 13)
	if err != nil {
		t.Fatalf("ExpandVolume4() error = %v", err)
	}
	if len(vol4.Cells) == 0 {
		t.Error("expected at least one covering cell")
	}
	if vol4.AltitudeLo == nil || *vol4.AltitudeLo != 0 {
		t.Errorf("AltitudeLo = %v, want 0", vol4.AltitudeLo)
	}
	if vol4.AltitudeHi == nil || *vol4.AltitudeHi != 100 {
		t.Errorf("AltitudeHi = %v, want 100", vol4.AltitudeHi)
	}
	if vol4.TimeStart == nil {
		t.Error("expected TimeStart to be set")
	}
}

func TestExpandVolume4_BothOutlinesRejected(t *testing.T) {
	extents := circleExtents(0, 0, 100)
	volume := extents["volume"].(map[string]any)
	volume["outline_polygon"] = map[string]any{
		"type":        "Polygon",
		"coordinates": []any{[]any{[]any{0.0, 0.0}, []any{0.0, 1.0}, []any{1.0, 1.0}, []any{0.0, 0.0}}},
	}
	if _, err := ExpandVolume4(extents, 13, 13); err == nil {
		t.Error("expected error when both outline_circle and outline_polygon are present")
	}
}

func TestExpandVolume4_NeitherOutline(t *testing.T) {
	extents := map[string]any{"volume": map[string]any{}}
	if _, err := ExpandVolume4(extents, 13, 13); err == nil {
		t.Error("expected error when neither outline is present")
	}
}

func TestExpandVolume4_InvalidLatitude(t *testing.T) {
	if _, err := ExpandVolume4(circleExtents(95, 0, 100), 13, 13); err == nil {
		t.Error("expected error for out-of-range latitude")
	}
}

func TestExpandVolume4_BoundaryLatLngAccepted(t *testing.T) {
	if _, err := ExpandVolume4(circleExtents(90, 180, 1), 13, 13); err != nil {
		t.Errorf("boundary lat/lng should be accepted, got error: %v", err)
	}
	if _, err := ExpandVolume4(circleExtents(-90, -180, 1), 13, 13); err != nil {
		t.Errorf("boundary lat/lng should be accepted, got error: %v", err)
	}
}

func TestExpandVolume4_ReversedTimeRangeRejected(t *testing.T) {
	extents := circleExtents(37.8, -122.4, 500)
	extents["time_start"] = map[string]any{"format": "RFC3339", "value": "2026-01-01T02:00:00Z"}
	extents["time_end"] = map[string]any{"format": "RFC3339", "value": "2026-01-01T01:00:00Z"}

	if _, err := ExpandVolume4(extents, 13, 13); err == nil {
		t.Error("expected error when time_start is after time_end")
	}
}

func TestExpandVolume4_ReversedAltitudeRangeRejected(t *testing.T) {
	extents := circleExtents(37.8, -122.4, 500)
	volume := extents["volume"].(map[string]any)
	volume["altitude_lower"] = map[string]any{"reference": "W84", "units": "M", "value": 200.0}
	volume["altitude_upper"] = map[string]any{"reference": "W84", "units": "M", "value": 100.0}

	if _, err := ExpandVolume4(extents, 13, 13); err == nil {
		t.Error("expected error when altitude_lower exceeds altitude_upper")
	}
}

func TestExpandVolume4_Polygon(t *testing.T) {
	extents := map[string]any{
		"volume": map[string]any{
			"outline_polygon": map[string]any{
				"type": "Polygon",
				"coordinates": []any{
					[]any{
						[]any{-122.5, 37.7},
						[]any{-122.5, 37.9},
						[]any{-122.3, 37.9},
						[]any{-122.5, 37.7},
					},
				},
			},
			"altitude_lower": map[string]any{"reference": "W84", "units": "M", "value": 0.0},
			"altitude_upper": map[string]any{"reference": "W84", "units": "M", "value": 120.0},
		},
	}
	vol4, err := ExpandVolume4(extents, 13, 13)
	if err != nil {
		t.Fatalf("ExpandVolume4() error = %v", err)
	}
	if len(vol4.Cells) == 0 {
		t.Error("expected at least one covering cell")
	}
	if vol4.TimeStart != nil {
		t.Error("expected TimeStart to be unbounded when absent from the request")
	}
}

func TestExpandVolume4_PolygonNotClosed(t *testing.T) {
	extents := map[string]any{
		"volume": map[string]any{
			"outline_polygon": map[string]any{
				"type": "Polygon",
				"coordinates": []any{
					[]any{
						[]any{-122.5, 37.7},
						[]any{-122.5, 37.9},
						[]any{-122.3, 37.9},
						[]any{-122.3, 37.7},
					},
				},
			},
		},
	}
	if _, err := ExpandVolume4(extents, 13, 13); err == nil {
		t.Error("expected error for a ring whose first and last coordinates differ")
	}
}

func mkTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func f(v float64) *float64 { return &v }

func cellSet(ids ...s2.CellID) map[s2.CellID]struct{} {
	out := make(map[s2.CellID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func TestVolume4_Contains(t *testing.T) {
	cellA := s2.CellIDFromLatLng(s2.LatLngFromDegrees(37.8, -122.4)).Parent(13)
	cellB := s2.CellIDFromLatLng(s2.LatLngFromDegrees(10, 10)).Parent(13)

	outer := Volume4{
		TimeStart:  mkTime("2026-01-01T00:00:00Z"),
		TimeEnd:    mkTime("2026-01-01T02:00:00Z"),
		AltitudeLo: f(0),
		AltitudeHi: f(200),
		Cells:      cellSet(cellA, cellB),
	}
	inner := Volume4{
		TimeStart:  mkTime("2026-01-01T00:30:00Z"),
		TimeEnd:    mkTime("2026-01-01T01:30:00Z"),
		AltitudeLo: f(50),
		AltitudeHi: f(150),
		Cells:      cellSet(cellA),
	}
	if !outer.Contains(inner) {
		t.Error("expected outer to contain inner")
	}
	if outer.Contains(Volume4{
		TimeStart:  inner.TimeStart,
		TimeEnd:    inner.TimeEnd,
		AltitudeLo: f(-10),
		AltitudeHi: inner.AltitudeHi,
		Cells:      cellSet(cellA),
	}) {
		t.Error("expected outer not to contain a volume with a lower altitude floor")
	}
	if outer.Contains(Volume4{
		TimeStart:  mkTime("2025-12-31T23:00:00Z"),
		TimeEnd:    inner.TimeEnd,
		AltitudeLo: inner.AltitudeLo,
		AltitudeHi: inner.AltitudeHi,
		Cells:      cellSet(cellA),
	}) {
		t.Error("expected outer not to contain a volume starting before it")
	}
	other := Volume4{
		TimeStart:  inner.TimeStart,
		TimeEnd:    inner.TimeEnd,
		AltitudeLo: inner.AltitudeLo,
		AltitudeHi: inner.AltitudeHi,
		Cells:      cellSet(s2.CellIDFromLatLng(s2.LatLngFromDegrees(-30, 150)).Parent(13)),
	}
	if outer.Contains(other) {
		t.Error("expected outer not to contain a volume whose cells it does not cover")
	}
}

func TestVolume4_OverlapsTimeAltitude(t *testing.T) {
	aoi := Volume4{
		TimeStart:  mkTime("2026-01-01T00:00:00Z"),
		TimeEnd:    mkTime("2026-01-01T01:00:00Z"),
		AltitudeLo: f(0),
		AltitudeHi: f(100),
	}
	overlapping := Volume4{
		TimeStart:  mkTime("2026-01-01T00:30:00Z"),
		TimeEnd:    mkTime("2026-01-01T02:00:00Z"),
		AltitudeLo: f(50),
		AltitudeHi: f(150),
	}
	if !aoi.OverlapsTimeAltitude(overlapping) {
		t.Error("expected overlapping volumes to overlap")
	}

	disjointInTime := Volume4{
		TimeStart:  mkTime("2026-01-01T02:00:00Z"),
		TimeEnd:    mkTime("2026-01-01T03:00:00Z"),
		AltitudeLo: f(0),
		AltitudeHi: f(100),
	}
	if aoi.OverlapsTimeAltitude(disjointInTime) {
		t.Error("expected volumes disjoint in time not to overlap")
	}

	unbounded := Volume4{}
	if !aoi.OverlapsTimeAltitude(unbounded) {
		t.Error("expected a fully unbounded volume to overlap any area of interest")
	}
}

func TestCombineVolume4s(t *testing.T) {
	cellA := s2.CellIDFromLatLng(s2.LatLngFromDegrees(0, 0)).Parent(13)
	cellB := s2.CellIDFromLatLng(s2.LatLngFromDegrees(1, 1)).Parent(13)

	a := Volume4{
		TimeStart:  mkTime("2026-01-01T00:00:00Z"),
		TimeEnd:    mkTime("2026-01-01T01:00:00Z"),
		AltitudeLo: f(0),
		AltitudeHi: f(100),
		Cells:      cellSet(cellA),
	}
	b := Volume4{
		TimeStart:  mkTime("2026-01-01T00:30:00Z"),
		TimeEnd:    mkTime("2026-01-01T02:00:00Z"),
		AltitudeLo: f(-10),
		AltitudeHi: f(50),
		Cells:      cellSet(cellB),
	}

	combined, err := CombineVolume4s([]Volume4{a, b})
	if err != nil {
		t.Fatalf("CombineVolume4s() error = %v", err)
	}
	if !combined.TimeStart.Equal(*a.TimeStart) {
		t.Errorf("TimeStart = %v, want %v", combined.TimeStart, a.TimeStart)
	}
	if !combined.TimeEnd.Equal(*b.TimeEnd) {
		t.Errorf("TimeEnd = %v, want %v", combined.TimeEnd, b.TimeEnd)
	}
	if *combined.AltitudeLo != -10 {
		t.Errorf("AltitudeLo = %v, want -10", *combined.AltitudeLo)
	}
	if *combined.AltitudeHi != 100 {
		t.Errorf("AltitudeHi = %v, want 100", *combined.AltitudeHi)
	}
	if len(combined.Cells) != 2 {
		t.Errorf("len(Cells) = %d, want 2", len(combined.Cells))
	}
}

func TestCombineVolume4s_EmptyInput(t *testing.T) {
	if _, err := CombineVolume4s(nil); err == nil {
		t.Error("expected an error when combining zero volumes")
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(nil); got != nil {
		t.Errorf("FormatTimestamp(nil) = %v, want nil", got)
	}
	ts := mkTime("2026-01-01T00:00:00Z")
	got := FormatTimestamp(ts)
	want := "2026-01-01T00:00:00.000Z"
	if got == nil || *got != want {
		t.Errorf("FormatTimestamp() = %v, want %q", got, want)
	}
}
