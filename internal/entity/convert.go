package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// offSuffix marks a fan speed that means "off".
const offSuffix = "-000"

// BrightnessToHost rescales a device brightness (0-100) to the host range
// (0-255). A nil or unparsable value maps to 0.
func BrightnessToHost(v any) int {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return clamp(int(math.Round(f*255/100)), 0, 255)
}

// BrightnessToDevice rescales a host brightness (0-255) to the device range
// (0-100). BrightnessToHost(BrightnessToDevice(b)) may differ from b by one.
func BrightnessToDevice(b int) int {
	return clamp(int(math.Round(float64(b)*100/255)), 0, 100)
}

// OrderedListItemToPercentage returns the percentage bucket of item within
// list: position i (zero based) of n maps to (i+1)*100/n.
func OrderedListItemToPercentage(list []string, item string) (int, error) {
	idx := slices.Index(list, item)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q not in %v", ErrInvalidValue, item, list)
	}
	return (idx + 1) * 100 / len(list), nil
}

// PercentageToOrderedListItem returns the first item whose bucket upper
// bound is at least pct, or the last item.
func PercentageToOrderedListItem(list []string, pct int) (string, error) {
	n := len(list)
	if n == 0 {
		return "", fmt.Errorf("%w: empty list", ErrInvalidValue)
	}
	for i, item := range list {
		if pct <= (i+1)*100/n {
			return item, nil
		}
	}
	return list[n-1], nil
}

// IsOffSpeed reports whether a fan speed name carries the off sentinel:
// a numeric suffix of zeros such as "-000" (or "-0000" on a wide ladder).
func IsOffSpeed(name string) bool {
	i := strings.LastIndexByte(name, '-')
	if i < 0 {
		return false
	}
	digits := name[i+1:]
	return len(digits) >= len(offSuffix)-1 && strings.Trim(digits, "0") == ""
}

// ParseKelvin parses a color temperature given as "3000K", "3000" or a number.
func ParseKelvin(v any) (int, error) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		s = strings.TrimSuffix(strings.TrimSuffix(s, "K"), "k")
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("%w: color temperature %q", ErrInvalidValue, val)
		}
		return n, nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return 0, fmt.Errorf("%w: color temperature %v", ErrInvalidValue, v)
		}
		return int(math.Round(f)), nil
	}
}

// SelectColorTemp picks the smallest supported value that is at least
// requested. When requested exceeds every supported value the first
// (smallest) element is returned. temps must be sorted ascending and
// non-empty.
func SelectColorTemp(temps []int, requested int) int {
	for _, t := range temps {
		if requested <= t {
			return t
		}
	}
	return temps[0]
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
