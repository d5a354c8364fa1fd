package smart

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// seagateCompositeLimit is the largest raw value that is taken at face value.
// Larger values on the Seagate composite attributes pack extra counters into
// the upper bits.
const seagateCompositeLimit = 65535

// ParseRaw converts a raw attribute value into an integer. Values arrive
// from JSON decoding (float64 or json.Number), from Go callers (ints) or as
// strings such as "34 (Min/Max 20/45)", of which the leading integer is used.
func ParseRaw(raw any) (int64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float32:
		return floatToInt(float64(v))
	case float64:
		return floatToInt(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case string:
		return parseRawString(v)
	default:
		return 0, false
	}
}

// ParseFloat is ParseRaw for comparisons that keep fractional values.
func ParseFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) {
			return 0, false
		}
		return v, true
	case float32:
		return ParseFloat(float64(v))
	case json.Number:
		f, err := v.Float64()
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
			return f, true
		}
	}
	n, ok := ParseRaw(raw)
	return float64(n), ok
}

func floatToInt(f float64) (int64, bool) {
	// float64(math.MaxInt64) rounds up to 2^63, which is already out of range.
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func parseRawString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return floatToInt(f)
	}
	end := 0
	if s[0] == '-' {
		end = 1
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Decode returns the meaningful integer for an ATA-family attribute.
// Seagate encodes Command_Timeout in the low 16 bits, and Raw_Read_Error_Rate
// and Seek_Error_Rate in bits 32-47, whenever the raw value exceeds 65535.
// Missing or unparsable values decode to 0.
func Decode(attribute string, raw any) int64 {
	n, ok := ParseRaw(raw)
	if !ok {
		return 0
	}
	return decodeInt(Attribute(attribute), n)
}

// DecodeOK is Decode that also reports whether the raw value parsed.
func DecodeOK(attribute string, raw any) (int64, bool) {
	n, ok := ParseRaw(raw)
	if !ok {
		return 0, false
	}
	return decodeInt(Attribute(attribute), n), true
}

func decodeInt(a Attribute, n int64) int64 {
	if n <= seagateCompositeLimit {
		return n
	}
	switch a {
	case CommandTimeout:
		return n & 0xFFFF
	case RawReadErrorRate, SeekErrorRate:
		return (n >> 32) & 0xFFFF
	default:
		return n
	}
}

// Value is the comparable value of an attribute for a given disk type.
// NVMe values are used as reported; ATA-family values go through Decode.
func Value(diskType, attribute string, raw any) (int64, bool) {
	if IsNVMe(diskType) {
		return ParseRaw(raw)
	}
	return DecodeOK(attribute, raw)
}
