package ionmetric

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unsafe"

	"go.opentelemetry.io/otel/attribute"
)

// TagFieldKey is the struct tag that marks a field as a measurement tag.
// The tag value is the tag key; an empty value uses the field name.
//
//	type Order struct {
//	    ID       string `metric:"orderId"`
//	    Currency string `metric:""`
//	    amount   int64
//	}
const TagFieldKey = "metric"

// nullString is written for nil values.
const nullString = "null"

// TagSet maps tag keys to values. Later writes win.
type TagSet map[string]string

// Clone returns a copy of t.
func (t TagSet) Clone() TagSet {
	return maps.Clone(t)
}

// Keys returns the keys in sorted order.
func (t TagSet) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}

// Attributes converts t to OpenTelemetry attributes in key order.
func (t TagSet) Attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(t))
	for _, k := range t.Keys() {
		attrs = append(attrs, attribute.String(k, t[k]))
	}
	return attrs
}

// Strings converts t to sorted "key:value" pairs.
func (t TagSet) Strings() []string {
	out := make([]string, 0, len(t))
	for _, k := range t.Keys() {
		out = append(out, k+":"+t[k])
	}
	return out
}

// Extractor derives the tag set of an invocation from its arguments and
// error.
type Extractor struct {
	classifier *Classifier
	keys       ErrorTagKeys
	logger     Logger
}

// NewExtractor returns an extractor. A nil classifier uses message keys
// verbatim; a nil logger discards field read failures.
func NewExtractor(c *Classifier, keys ErrorTagKeys, logger Logger) *Extractor {
	if c == nil {
		c = NewClassifier(nil, DefaultLocale)
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Extractor{classifier: c, keys: keys, logger: logger}
}

// ExtractTags is Extract with the default classifier and tag keys.
func ExtractTags(args []any, err error) TagSet {
	return NewExtractor(nil, DefaultErrorTagKeys(), nil).Extract(context.Background(), args, err)
}

// Extract starts from the classification of err and adds every tagged field
// of every non-nil argument, in argument order then field order.
func (x *Extractor) Extract(ctx context.Context, args []any, err error) TagSet {
	tags := x.classifier.Classify(err).Tags(x.keys)

	for _, arg := range args {
		v, ok := structValue(arg)
		if !ok {
			continue
		}
		for _, f := range taggedFields(v.Type()) {
			tags[f.key] = x.readField(ctx, v, f)
		}
	}
	return tags
}

// readField returns the string form of one field, or "" when it cannot be
// read.
func (x *Extractor) readField(ctx context.Context, v reflect.Value, f taggedField) (s string) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error(ctx, "failed to read metric tag field", panicError(r),
				String("field", f.name), String("tag", f.key))
			s = ""
		}
	}()

	fv, ok := fieldByIndex(v, f.index)
	if !ok {
		return nullString
	}
	return stringify(accessible(fv))
}

type taggedField struct {
	index []int
	name  string
	key   string
}

var fieldCache sync.Map // reflect.Type -> []taggedField

// taggedFields returns the tagged fields of struct type t, computing them
// once per type.
func taggedFields(t reflect.Type) []taggedField {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]taggedField)
	}
	fields := collectTaggedFields(t, nil, map[reflect.Type]bool{t: true})
	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]taggedField)
}

// collectTaggedFields lists tagged fields in declaration order. Untagged
// embedded structs contribute their tagged fields at their own position.
func collectTaggedFields(t reflect.Type, prefix []int, seen map[reflect.Type]bool) []taggedField {
	var out []taggedField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(slices.Clone(prefix), i)

		if key, ok := sf.Tag.Lookup(TagFieldKey); ok {
			key = strings.TrimSpace(key)
			if key == "" {
				key = sf.Name
			}
			out = append(out, taggedField{index: index, name: sf.Name, key: key})
			continue
		}

		if !sf.Anonymous {
			continue
		}
		et := sf.Type
		if et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		if et.Kind() != reflect.Struct || seen[et] {
			continue
		}
		seen[et] = true
		out = append(out, collectTaggedFields(et, index, seen)...)
		delete(seen, et)
	}
	return out
}

// structValue dereferences arg down to an addressable struct value.
func structValue(arg any) (reflect.Value, bool) {
	if arg == nil {
		return reflect.Value{}, false
	}
	v := reflect.ValueOf(arg)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	if !v.CanAddr() {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		v = cp
	}
	return v, true
}

// fieldByIndex is reflect.Value.FieldByIndex that reports a nil embedded
// pointer instead of panicking.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// accessible returns a copy of v that can be read through Interface even
// when v is an unexported field.
func accessible(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// stringify renders v the way the tag value is reported: nil as "null",
// pointers by their target, Stringer and error through their methods.
func stringify(v reflect.Value) string {
	switch v.Kind() {
	case reflect.Invalid:
		return nullString
	case reflect.Interface:
		if v.IsNil() {
			return nullString
		}
		return stringify(v.Elem())
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if v.IsNil() {
			return nullString
		}
	}

	if !v.CanInterface() {
		return fmt.Sprint(v)
	}
	// Pointer-receiver methods of an addressable value.
	if v.Kind() != reflect.Pointer && v.CanAddr() {
		switch x := v.Addr().Interface().(type) {
		case fmt.Stringer:
			return x.String()
		case error:
			return x.Error()
		}
	}
	switch x := v.Interface().(type) {
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	if v.Kind() == reflect.Pointer {
		return stringify(v.Elem())
	}
	return fmt.Sprint(v.Interface())
}
