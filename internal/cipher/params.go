package cipher

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/RowanDark/cipherkit/internal/alphabet"
	"github.com/RowanDark/cipherkit/internal/bacon"
)

// ErrInvalidParam is returned when an operation parameter is missing or has
// the wrong type.
var ErrInvalidParam = errors.New("invalid parameter")

// Parameter names understood by the built-in operations.
const (
	ParamShift          = "shift"
	ParamCaseSensitive  = "case_sensitive"
	ParamIncludeForeign = "include_foreign_chars"
	ParamAlphabet       = "alphabet"
	ParamVersion        = "version"
	ParamCover          = "cover"
	ParamNoise          = "noise"
	ParamSeed           = "seed"
)

// intParam reads an integer. JSON numbers arrive as float64, CBOR as int64 or
// uint64, YAML as int; numeric strings are accepted too.
func intParam(params map[string]interface{}, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return intInRange(key, int64(v))
	case int32:
		return int(v), nil
	case int64:
		return intInRange(key, v)
	case uint64:
		if v > math.MaxInt32 {
			return 0, fmt.Errorf("%w %q: %d out of range", ErrInvalidParam, key, v)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%w %q: %v is not an integer", ErrInvalidParam, key, v)
		}
		if math.Abs(v) > math.MaxInt32 {
			return 0, fmt.Errorf("%w %q: %v out of range", ErrInvalidParam, key, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w %q: %v", ErrInvalidParam, key, err)
		}
		return intInRange(key, n)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w %q: %q is not an integer", ErrInvalidParam, key, v)
		}
		return intInRange(key, n)
	default:
		return 0, fmt.Errorf("%w %q: unsupported type %T", ErrInvalidParam, key, raw)
	}
}

// intInRange keeps integer params within int32 so they survive the float64
// encoding of structpb unchanged.
func intInRange(key string, n int64) (int, error) {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, fmt.Errorf("%w %q: %d out of range", ErrInvalidParam, key, n)
	}
	return int(n), nil
}

func requiredIntParam(params map[string]interface{}, key string) (int, error) {
	if raw, ok := params[key]; !ok || raw == nil {
		return 0, fmt.Errorf("%w %q: required", ErrInvalidParam, key)
	}
	return intParam(params, key, 0)
}

func boolParam(params map[string]interface{}, key string, def bool) (bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%w %q: %q is not a boolean", ErrInvalidParam, key, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w %q: unsupported type %T", ErrInvalidParam, key, raw)
	}
}

func requiredStringParam(params map[string]interface{}, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", fmt.Errorf("%w %q: required", ErrInvalidParam, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w %q: unsupported type %T", ErrInvalidParam, key, raw)
	}
	return s, nil
}

func versionParam(params map[string]interface{}) (bacon.Version, error) {
	v, err := intParam(params, ParamVersion, int(bacon.DefaultVersion))
	if err != nil {
		return 0, err
	}
	if _, err := bacon.TableFor(bacon.Version(v)); err != nil {
		return 0, err
	}
	return bacon.Version(v), nil
}

// alphabetParam returns nil when no alphabet is given, which the caesar
// package treats as the default alphabet.
func alphabetParam(params map[string]interface{}) (alphabet.Alphabet, error) {
	raw, ok := params[ParamAlphabet]
	if !ok || raw == nil {
		return nil, nil
	}
	return alphabet.Parse(raw)
}

// DefaultsFunc returns parameter defaults for an operation name.
type DefaultsFunc func(op string) map[string]interface{}

// MergeParams layers params over defaults. Neither map is modified.
func MergeParams(defaults, params map[string]interface{}) map[string]interface{} {
	if len(defaults) == 0 {
		return params
	}
	merged := make(map[string]interface{}, len(defaults)+len(params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// WithDefaults returns a copy of p whose steps carry the defaults for their
// operation under the step's own parameters.
func (p *Pipeline) WithDefaults(defaults DefaultsFunc) *Pipeline {
	steps := make([]OperationConfig, len(p.Operations))
	for i, step := range p.Operations {
		steps[i] = step
		if defaults != nil {
			steps[i].Parameters = MergeParams(defaults(step.Name), step.Parameters)
		}
	}
	return &Pipeline{Operations: steps, Reversible: p.Reversible}
}
