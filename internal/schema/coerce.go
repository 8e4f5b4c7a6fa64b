package schema

import (
	"fmt"
	"strconv"
	"time"
)

// Coerce converts a value read from storage (or a loosely typed source) into
// the canonical Go type for field f. A nil value stays nil.
func Coerce(f FieldSpec, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case FieldInt:
		return toInt(v)
	case FieldFloat:
		return toFloat(v)
	case FieldBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			return strconv.ParseBool(x)
		}
	case FieldDate:
		switch x := v.(type) {
		case Date:
			return x, nil
		case time.Time:
			return DateOf(x), nil
		case string:
			return ParseDate(x)
		case []byte:
			return ParseDate(string(x))
		}
	case FieldEnum:
		switch x := v.(type) {
		case EnumMember:
			return x, nil
		case string:
			return EnumMember{Domain: f.Domain, Value: x}, nil
		case []byte:
			return EnumMember{Domain: f.Domain, Value: string(x)}, nil
		}
	default:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		default:
			return fmt.Sprint(x), nil
		}
	}
	return nil, fmt.Errorf("field %s: cannot use %T as %s", f.Name, v, f.Type)
}

// StorageValue converts a typed record value into the form written to the
// row store: dates as ISO text, enum members as their value.
func StorageValue(v any) any {
	switch x := v.(type) {
	case Date:
		return x.String()
	case EnumMember:
		return x.Value
	case int:
		return int64(x)
	default:
		return v
	}
}

// Display renders a record value as table-cell text.
func Display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		if x != float64(int64(x)) {
			return 0, fmt.Errorf("%v is not an integer", x)
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	}
	return 0, fmt.Errorf("cannot use %T as int", v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(x, 64)
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	}
	return 0, fmt.Errorf("cannot use %T as float", v)
}
