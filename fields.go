package ionmetric

import "time"

// FieldType selects which member of Field holds the value.
type FieldType uint8

const (
	UnknownType FieldType = iota
	StringType
	Int64Type
	Float64Type
	BoolType
	DurationType
	ErrorType
	AnyType
)

// Field is a structured log field. Primitive constructors do not allocate.
type Field struct {
	Key       string
	Type      FieldType
	Integer   int64
	StringVal string
	Float     float64
	Interface any
}

// F picks the typed constructor matching value.
func F(key string, value any) Field {
	switch v := value.(type) {
	case string:
		return String(key, v)
	case int:
		return Int(key, v)
	case int64:
		return Int64(key, v)
	case float64:
		return Float64(key, v)
	case bool:
		return Bool(key, v)
	case time.Duration:
		return Duration(key, v)
	case error:
		return Err(v)
	default:
		return Field{Key: key, Type: AnyType, Interface: value}
	}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Type: StringType, StringVal: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: key, Type: Int64Type, Integer: int64(value)}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Type: Int64Type, Integer: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Type: Float64Type, Float: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	var i int64
	if value {
		i = 1
	}
	return Field{Key: key, Type: BoolType, Integer: i}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Type: DurationType, Integer: int64(value)}
}

// Err creates an error field under the key "error".
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Type: AnyType}
	}
	return Field{Key: "error", Type: ErrorType, Interface: err}
}

// Tags creates a field holding a whole tag set.
func Tags(tags TagSet) Field {
	return Field{Key: "tags", Type: AnyType, Interface: map[string]string(tags)}
}
