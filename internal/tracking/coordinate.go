package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
)

// Coordinate is a latitude or longitude exactly as the courier app sent it.
// Both JSON numbers and numeric strings are accepted; validation happens in
// the service so a bad value surfaces as a field error instead of a decode error.
type Coordinate struct {
	raw string
	set bool
}

// CoordinateOf builds a Coordinate from a float.
func CoordinateOf(v float64) *Coordinate {
	return &Coordinate{raw: strconv.FormatFloat(v, 'f', -1, 64), set: true}
}

// RawCoordinate builds a Coordinate from its textual form.
func RawCoordinate(v string) *Coordinate {
	return &Coordinate{raw: v, set: true}
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*c = Coordinate{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = Coordinate{raw: s, set: true}
		return nil
	}
	*c = Coordinate{raw: string(trimmed), set: true}
	return nil
}

// IsSet reports whether a value was supplied.
func (c *Coordinate) IsSet() bool {
	return c != nil && c.set
}

func (c *Coordinate) parse(field string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalidCoordinate(field, fmt.Sprintf("Invalid %s", field))
	}
	if v < -limit || v > limit {
		return 0, invalidCoordinate(field, fmt.Sprintf("%s must be between -%g and %g", field, limit, limit))
	}
	return v, nil
}

func invalidCoordinate(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).
		WithDetails(map[string]any{"field": field, "reason": "invalid_coordinate"})
}
