package tagreader

import (
	"fmt"
	"strings"
)

// CoerceBool interprets a tag value as the running flag. Numbers are true when non-zero.
func CoerceBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int:
		return val != 0, nil
	case int8:
		return val != 0, nil
	case int16:
		return val != 0, nil
	case int32:
		return val != 0, nil
	case int64:
		return val != 0, nil
	case uint:
		return val != 0, nil
	case uint8:
		return val != 0, nil
	case uint16:
		return val != 0, nil
	case uint32:
		return val != 0, nil
	case uint64:
		return val != 0, nil
	case float32:
		return val != 0, nil
	case float64:
		return val != 0, nil
	case string:
		return parseBoolText(val)
	case []byte:
		return parseBoolText(string(val))
	}
	return false, fmt.Errorf("%w: %T", ErrNotBoolean, v)
}

func parseBoolText(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "running", "yes":
		return true, nil
	case "false", "0", "off", "stopped", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrNotBoolean, s)
}
