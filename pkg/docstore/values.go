package docstore

import "time"

// Helpers for reading typed values out of a Doc. Firestore returns int64 for
// integers and []interface{} for arrays, while documents written in memory
// keep their Go types, so each helper accepts both.

func String(d Doc, key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

func Bool(d Doc, key string) bool {
	b, _ := d[key].(bool)
	return b
}

func Int64(d Doc, key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func Time(d Doc, key string) time.Time {
	switch v := d[key].(type) {
	case time.Time:
		return v
	case string:
		t, _ := time.Parse(time.RFC3339, v)
		return t
	}
	return time.Time{}
}

func Strings(d Doc, key string) []string {
	switch v := d[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Map returns a nested document or nil.
func Map(d Doc, key string) map[string]interface{} {
	m, _ := d[key].(map[string]interface{})
	return m
}
