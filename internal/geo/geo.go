// Package geo implements the GeoIndex component: conversion of wire-format
// 4-D volume descriptions into sets of S2 cells at a fixed level, and the
// overlap/containment predicates the coordination core runs against them.
package geo

import (
	"math"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/BenjaminPelletier/dss/internal/dsserr"
)

// earthCircumferenceM and radiansPerMeter convert a great-circle radius in
// meters to the angular radius s2.CapFromCenterAngle expects.
const earthCircumferenceM = 40.075e6

var radiansPerMeter = 2 * math.Pi / earthCircumferenceM

// Config holds the fixed S2 coverage level the node was started with.
type Config struct {
	MinS2Level int
	MaxS2Level int
}

// Volume4 is a 4-D region: a time interval, an altitude interval, and a
// horizontal footprint expressed as a set of same-level S2 cells. A nil
// interval endpoint means unbounded on that side.
type Volume4 struct {
	TimeStart  *time.Time
	TimeEnd    *time.Time
	AltitudeLo *float64
	AltitudeHi *float64
	Cells      map[s2.CellID]struct{}
}

// Contains reports whether other's time and altitude intervals lie inside
// this volume's and other's cells are a subset of this volume's. Because
// every Volume4 in this node covers cells at the same fixed level, exact
// set membership is equivalent to true S2 cell-union containment.
func (v Volume4) Contains(other Volume4) bool {
	if v.AltitudeLo != nil {
		if other.AltitudeLo == nil || *other.AltitudeLo < *v.AltitudeLo {
			return false
		}
	}
	if v.AltitudeHi != nil {
		if other.AltitudeHi == nil || *other.AltitudeHi > *v.AltitudeHi {
			return false
		}
	}
	if v.TimeStart != nil {
		if other.TimeStart == nil || other.TimeStart.Before(*v.TimeStart) {
			return false
		}
	}
	if v.TimeEnd != nil {
		if other.TimeEnd == nil || other.TimeEnd.After(*v.TimeEnd) {
			return false
		}
	}
	for c := range other.Cells {
		if _, ok := v.Cells[c]; !ok {
			return false
		}
	}
	return true
}

// OverlapsTimeAltitude reports whether vol4's time and altitude intervals
// intersect this (the area-of-interest) volume's, treating nil endpoints as
// infinite. Horizontal overlap is handled separately by cell-bucket lookup.
func (aoi Volume4) OverlapsTimeAltitude(vol4 Volume4) bool {
	if aoi.TimeStart != nil && vol4.TimeEnd != nil && vol4.TimeEnd.Before(*aoi.TimeStart) {
		return false
	}
	if aoi.TimeEnd != nil && vol4.TimeStart != nil && vol4.TimeStart.After(*aoi.TimeEnd) {
		return false
	}
	if aoi.AltitudeLo != nil && vol4.AltitudeHi != nil && *vol4.AltitudeHi < *aoi.AltitudeLo {
		return false
	}
	if aoi.AltitudeHi != nil && vol4.AltitudeLo != nil && *vol4.AltitudeLo > *aoi.AltitudeHi {
		return false
	}
	return true
}

// CombineVolume4s returns the enclosing envelope of vol4s: the widest time
// and altitude interval and the union of cells. Callers must pass at least
// one volume.
func CombineVolume4s(vol4s []Volume4) (Volume4, error) {
	if len(vol4s) == 0 {
		return Volume4{}, dsserr.InvalidRequestf("combine_volume4s requires at least one Volume4")
	}

	out := Volume4{Cells: make(map[s2.CellID]struct{})}
	first := true
	for _, v := range vol4s {
		if first {
			out.TimeStart = v.TimeStart
			out.TimeEnd = v.TimeEnd
			out.AltitudeLo = v.AltitudeLo
			out.AltitudeHi = v.AltitudeHi
			first = false
		} else {
			out.TimeStart = earlierOrUnbounded(out.TimeStart, v.TimeStart)
			out.TimeEnd = laterOrUnbounded(out.TimeEnd, v.TimeEnd)
			out.AltitudeLo = lowerOrUnbounded(out.AltitudeLo, v.AltitudeLo)
			out.AltitudeHi = higherOrUnbounded(out.AltitudeHi, v.AltitudeHi)
		}
		for c := range v.Cells {
			out.Cells[c] = struct{}{}
		}
	}
	return out, nil
}

// earlierOrUnbounded returns the earlier of a and b; nil (unbounded) wins
// since it represents -infinity for a start bound.
func earlierOrUnbounded(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.Before(*a) {
		return b
	}
	return a
}

// laterOrUnbounded returns the later of a and b; nil wins since it
// represents +infinity for an end bound.
func laterOrUnbounded(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.After(*a) {
		return b
	}
	return a
}

func lowerOrUnbounded(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	if *b < *a {
		return b
	}
	return a
}

func higherOrUnbounded(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	if *b > *a {
		return b
	}
	return a
}

// ExpandVolume4 parses a wire-format Volume4D extents object into a Volume4,
// covering its horizontal footprint with S2 cells at [minLevel, maxLevel].
func ExpandVolume4(extents map[string]any, minLevel, maxLevel int) (Volume4, error) {
	volumeRaw, ok := extents["volume"].(map[string]any)
	if !ok {
		return Volume4{}, dsserr.InvalidRequestf("missing `volume` in Volume3")
	}

	_, hasCircle := volumeRaw["outline_circle"]
	_, hasPolygon := volumeRaw["outline_polygon"]
	if hasCircle == hasPolygon {
		return Volume4{}, dsserr.InvalidRequestf("expected exactly one of `outline_circle` or `outline_polygon` to be specified in Volume3")
	}

	coverer := &s2.RegionCoverer{MinLevel: minLevel, MaxLevel: maxLevel, MaxCells: 1 << 16}
	cells := make(map[s2.CellID]struct{})

	if hasCircle {
		cap, err := parseOutlineCircle(volumeRaw["outline_circle"])
		if err != nil {
			return Volume4{}, err
		}
		for _, c := range coverer.Covering(cap) {
			cells[c] = struct{}{}
		}
	} else {
		rect, err := parseOutlinePolygon(volumeRaw["outline_polygon"])
		if err != nil {
			return Volume4{}, err
		}
		for _, c := range coverer.Covering(rect) {
			cells[c] = struct{}{}
		}
	}

	altitudeLo, err := getAltitude(volumeRaw["altitude_lower"])
	if err != nil {
		return Volume4{}, dsserr.InvalidRequestf("%s", err.Error())
	}
	altitudeHi, err := getAltitude(volumeRaw["altitude_upper"])
	if err != nil {
		return Volume4{}, dsserr.InvalidRequestf("%s", err.Error())
	}
	timeStart, err := getTime(extents["time_start"])
	if err != nil {
		return Volume4{}, dsserr.InvalidRequestf("%s", err.Error())
	}
	timeEnd, err := getTime(extents["time_end"])
	if err != nil {
		return Volume4{}, dsserr.InvalidRequestf("%s", err.Error())
	}

	if timeStart != nil && timeEnd != nil && timeStart.After(*timeEnd) {
		return Volume4{}, dsserr.InvalidRequestf("time_start must not be after time_end")
	}
	if altitudeLo != nil && altitudeHi != nil && *altitudeLo > *altitudeHi {
		return Volume4{}, dsserr.InvalidRequestf("altitude_lower must not exceed altitude_upper")
	}

	return Volume4{
		TimeStart:  timeStart,
		TimeEnd:    timeEnd,
		AltitudeLo: altitudeLo,
		AltitudeHi: altitudeHi,
		Cells:      cells,
	}, nil
}

func parseOutlineCircle(raw any) (s2.Cap, error) {
	circle, ok := raw.(map[string]any)
	if !ok {
		return s2.Cap{}, dsserr.InvalidRequestf("`outline_circle` must be an object")
	}
	if t, _ := circle["type"].(string); t != "Feature" {
		return s2.Cap{}, dsserr.InvalidRequestf("expected `outline_circle` to have `type` Feature")
	}
	geometry, ok := circle["geometry"].(map[string]any)
	if !ok {
		return s2.Cap{}, dsserr.InvalidRequestf("missing `geometry` in outline_circle")
	}
	if t, _ := geometry["type"].(string); t != "Point" {
		return s2.Cap{}, dsserr.InvalidRequestf("expected `geometry` to have `type` Point in `outline_circle`")
	}
	coords, ok := geometry["coordinates"].([]any)
	if !ok || len(coords) != 2 {
		return s2.Cap{}, dsserr.InvalidRequestf("expected 2 elements in `outline_circle` `geometry` `coordinates`")
	}
	lng, lngOK := coords[0].(float64)
	lat, latOK := coords[1].(float64)
	if !lngOK || !latOK {
		return s2.Cap{}, dsserr.InvalidRequestf("`outline_circle` coordinates must be numbers")
	}
	if lng < -180 || lng > 180 {
		return s2.Cap{}, dsserr.InvalidRequestf("circle center point longitude outside [-180, 180]")
	}
	if lat < -90 || lat > 90 {
		return s2.Cap{}, dsserr.InvalidRequestf("circle center point latitude outside [-90, 90]")
	}

	properties, ok := circle["properties"].(map[string]any)
	if !ok {
		return s2.Cap{}, dsserr.InvalidRequestf("missing `properties` in `outline_circle`")
	}
	radiusObj, ok := properties["radius"].(map[string]any)
	if !ok {
		return s2.Cap{}, dsserr.InvalidRequestf("missing `radius` in `properties` of `outline_circle`")
	}
	if units, _ := radiusObj["units"].(string); units != "M" {
		return s2.Cap{}, dsserr.InvalidRequestf("expected `radius` `units` of `outline_circle` to be M")
	}
	radius, ok := radiusObj["value"].(float64)
	if !ok {
		return s2.Cap{}, dsserr.InvalidRequestf("missing `radius` `value` in `outline_circle` `properties`")
	}
	if radius < 0 {
		return s2.Cap{}, dsserr.InvalidRequestf("`radius` `value` must be non-negative")
	}

	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	angle := s1.Angle(radius * radiansPerMeter)
	return s2.CapFromCenterAngle(center, angle), nil
}

func parseOutlinePolygon(raw any) (s2.Rect, error) {
	polygon, ok := raw.(map[string]any)
	if !ok {
		return s2.Rect{}, dsserr.InvalidRequestf("`outline_polygon` must be an object")
	}
	if t, _ := polygon["type"].(string); t != "Polygon" {
		return s2.Rect{}, dsserr.InvalidRequestf("expected `outline_polygon` to have `type` Polygon")
	}
	rings, ok := polygon["coordinates"].([]any)
	if !ok || len(rings) == 0 {
		return s2.Rect{}, dsserr.InvalidRequestf("missing `coordinates` in outline_polygon")
	}
	if len(rings) != 1 {
		return s2.Rect{}, dsserr.InvalidRequestf("expected exactly one element in outline_polygon coordinates")
	}
	ring, ok := rings[0].([]any)
	if !ok || len(ring) < 4 {
		return s2.Rect{}, dsserr.InvalidRequestf("expected at least 4 elements in outline_polygon coordinates")
	}

	points := make([]s2.LatLng, 0, len(ring))
	for _, raw := range ring {
		coord, ok := raw.([]any)
		if !ok || len(coord) != 2 {
			return s2.Rect{}, dsserr.InvalidRequestf("each outline_polygon coordinate must be a [lng, lat] pair")
		}
		lng, lngOK := coord[0].(float64)
		lat, latOK := coord[1].(float64)
		if !lngOK || !latOK {
			return s2.Rect{}, dsserr.InvalidRequestf("outline_polygon coordinates must be numbers")
		}
		if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
			return s2.Rect{}, dsserr.InvalidRequestf("outline_polygon coordinate out of range")
		}
		points = append(points, s2.LatLngFromDegrees(lat, lng))
	}

	first, last := ring[0].([]any), ring[len(ring)-1].([]any)
	if first[0] != last[0] || first[1] != last[1] {
		return s2.Rect{}, dsserr.InvalidRequestf("expected first set of coordinates in outline_polygon to match last set")
	}

	rect := s2.RectFromLatLng(points[0])
	for _, ll := range points[1:] {
		rect = rect.AddPoint(ll)
	}
	return rect, nil
}

func getAltitude(raw any) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errAltitudeShape
	}
	if ref, _ := m["reference"].(string); ref != "W84" {
		return nil, errAltitudeReference
	}
	if units, _ := m["units"].(string); units != "M" {
		return nil, errAltitudeUnits
	}
	v, ok := m["value"].(float64)
	if !ok {
		return nil, errAltitudeValue
	}
	return &v, nil
}

func getTime(raw any) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errTimeShape
	}
	if format, _ := m["format"].(string); format != "RFC3339" {
		return nil, errTimeFormat
	}
	value, ok := m["value"].(string)
	if !ok {
		return nil, errTimeValue
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// FormatTimestamp renders t the way wire responses do: RFC3339 truncated to
// milliseconds with a literal "Z" suffix. A nil input yields nil (unbounded).
func FormatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format("2006-01-02T15:04:05.000") + "Z"
	return &s
}
