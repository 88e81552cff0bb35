package core

import "maps"

// Settings is an opaque key-value document attached to a transform or plugin.
// Its semantics are owned by the named transform or plugin.
type Settings map[string]any

// String returns the string value stored under key.
func (s Settings) String(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// Bool returns the boolean stored under key, or false.
func (s Settings) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// StringSlice returns the list of strings stored under key.
// A single string is treated as a one-element list; non-string
// elements are skipped.
func (s Settings) StringSlice(key string) []string {
	switch v := s[key].(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy of the settings.
func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	return maps.Clone(s)
}
