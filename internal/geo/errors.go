package geo

import "errors"

var (
	errAltitudeShape     = errors.New("altitude should be an object with `reference`, `units`, and `value` fields")
	errAltitudeReference = errors.New("incorrect `reference` in altitude; expected W84")
	errAltitudeUnits     = errors.New("incorrect `units` in altitude; expected M")
	errAltitudeValue     = errors.New("missing or invalid `value` in altitude")

	errTimeShape  = errors.New("time should be an object with `format` and `value` fields")
	errTimeFormat = errors.New("incorrect `format` in time; expected RFC3339")
	errTimeValue  = errors.New("missing or invalid `value` in time")
)
