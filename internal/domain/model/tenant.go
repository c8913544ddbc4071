package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeTenantKey converts an externally supplied company id into its canonical string form.
//
// [KEY_COLLISION] Numeric and string forms of the same value map to the same key:
// 42, 42.0, json.Number("42") and "42" all normalize to "42".
// Returns false for nil, empty or whitespace-only keys.
func NormalizeTenantKey(raw any) (string, bool) {
	var key string

	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		key = v
	case json.Number:
		key = normalizeNumber(v.String())
	case float64:
		key = formatFloat(v)
	case float32:
		key = formatFloat(float64(v))
	case int:
		key = strconv.Itoa(v)
	case int32:
		key = strconv.FormatInt(int64(v), 10)
	case int64:
		key = strconv.FormatInt(v, 10)
	case uint:
		key = strconv.FormatUint(uint64(v), 10)
	case uint32:
		key = strconv.FormatUint(uint64(v), 10)
	case uint64:
		key = strconv.FormatUint(v, 10)
	case bool:
		key = strconv.FormatBool(v)
	case fmt.Stringer:
		key = v.String()
	default:
		return "", false
	}

	if strings.TrimSpace(key) == "" {
		return "", false
	}
	return key, true
}

// normalizeNumber renders a JSON number literal the way a JavaScript String(n) call would,
// so "42.0" and "4.2e1" collide with 42.
func normalizeNumber(lit string) string {
	if _, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return lit
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return lit
	}
	return formatFloat(f)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
