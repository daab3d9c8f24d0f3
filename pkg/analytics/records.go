package analytics

import "math"

// Record is one flattened output row. Nested objects appear as dotted keys
// ("album.name"); arrays are kept as values.
type Record map[string]any

// Flatten turns upstream items into records. Items that are not JSON
// objects are skipped. The result is normalized and never nil.
func Flatten(items []any) []Record {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := make(Record, len(obj))
		flattenInto(rec, "", obj)
		records = append(records, rec)
	}
	return records
}

func flattenInto(dst Record, prefix string, obj map[string]any) {
	for key, value := range obj {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			flattenInto(dst, name, nested)
			continue
		}
		dst[name] = Normalize(value)
	}
}

// Normalize replaces every NaN and infinite number with nil, recursively
// through maps and slices, so the value always encodes as valid JSON.
func Normalize(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return val
	case Record:
		return Record(normalizeMap(val))
	case map[string]any:
		return normalizeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	case []float64:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		out[key] = Normalize(value)
	}
	return out
}

// Mode returns the most frequent value. Ties go to the value seen first.
func Mode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}

	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}

	best, bestCount := "", 0
	for _, v := range values {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, true
}

// stringsOf collects the string values stored under key, skipping absent ones.
func stringsOf(records []Record, key string) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if s, ok := rec[key].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// seedList deduplicates values, keeping order, and truncates to max.
func seedList(values []string, max int) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, max)
	for _, v := range values {
		if len(out) == max {
			break
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
