package engine

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Fields is untyped admin input from a JSON body or a form.
type Fields map[string]any

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// maxFormInt bounds whole-number fields (yen amounts, years).
const maxFormInt = math.MaxInt32

// toInt reads a number the way a form field is read: unparseable or empty is 0.
// Values beyond maxFormInt are clamped; coerce rejects them before this point.
func toInt(v any) int {
	f := math.Round(toFloat(v))
	switch {
	case f > maxFormInt:
		return maxFormInt
	case f < -maxFormInt:
		return -maxFormInt
	}
	return int(f)
}

func intInRange(v any) bool {
	return math.Abs(math.Round(toFloat(v))) <= maxFormInt
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		s = strings.TrimPrefix(s, "¥")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	case []string:
		if len(x) == 0 {
			return 0
		}
		return toFloat(x[0])
	}
	return 0
}

// toBool reads a checkbox: "on", "true", "1", "yes" are checked.
func toBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "on", "true", "1", "yes", "checked":
			return true
		}
		return false
	case []string:
		for _, s := range x {
			if toBool(s) {
				return true
			}
		}
		return false
	case nil:
		return false
	}
	return toFloat(v) != 0
}
