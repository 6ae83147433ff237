package record

import (
	"strconv"

	"github.com/ValentinKolb/rkv/lib/store"
)

// reply conversions, queued placeholders and unexpected types convert to zero values

func asInt(v any) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch v := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func asString(v any, err error) (string, bool, error) {
	if err != nil || v == nil {
		return "", false, err
	}
	if v == store.Queued {
		return "", false, nil
	}
	return store.Arg(v), true, nil
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = store.Arg(item)
	}
	return out
}

// asMap converts a flat field/value reply (HGETALL)
func asMap(v any) map[string]string {
	items := asStrings(v)
	out := make(map[string]string, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		out[items[i]] = items[i+1]
	}
	return out
}
