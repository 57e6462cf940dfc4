package ionmetric

import (
	"reflect"
	"strings"
)

// Metric declares the metric name a call is recorded under.
//
// Embedding Metric in a struct declares the name for every method of that
// type, and for every type that embeds it in turn:
//
//	type PaymentService struct {
//	    ionmetric.Metric
//	    gateway Gateway
//	}
//
//	svc := &PaymentService{Metric: ionmetric.Metric{Name: "payments"}}
type Metric struct {
	Name string
}

// MetricName implements MetricNamer.
func (m Metric) MetricName() string { return m.Name }

// MetricNamer is implemented by types that declare a metric name for all
// their methods.
type MetricNamer interface {
	MetricName() string
}

// MethodMetricNamer is implemented by types that declare metric names per
// method. It takes precedence over MetricNamer.
type MethodMetricNamer interface {
	MethodMetric(method string) (name string, ok bool)
}

// ResolveMetric finds the metric declared for method on target. It checks the
// method-level declaration, then the type-level one, then walks embedded
// structs depth first. Blank names count as undeclared.
func ResolveMetric(target any, method string) (Metric, bool) {
	if target == nil {
		return Metric{}, false
	}
	return resolveValue(reflect.ValueOf(target), method, make(map[reflect.Type]bool))
}

func resolveValue(v reflect.Value, method string, seen map[reflect.Type]bool) (Metric, bool) {
	if !v.IsValid() {
		return Metric{}, false
	}
	if name, ok := declaredName(v, method); ok {
		return Metric{Name: name}, true
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return Metric{}, false
		}
		v = v.Elem()
		if name, ok := declaredName(v, method); ok {
			return Metric{Name: name}, true
		}
	}
	if v.Kind() != reflect.Struct || seen[v.Type()] {
		return Metric{}, false
	}
	seen[v.Type()] = true

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).Anonymous {
			continue
		}
		if m, ok := resolveValue(v.Field(i), method, seen); ok {
			return m, true
		}
	}
	return Metric{}, false
}

// declaredName checks v, and its address when it has one, for either
// declaration interface.
func declaredName(v reflect.Value, method string) (string, bool) {
	candidates := []reflect.Value{v}
	if v.CanAddr() {
		candidates = append(candidates, v.Addr())
	}

	for _, c := range candidates {
		if !c.CanInterface() {
			continue
		}
		if n, ok := c.Interface().(MethodMetricNamer); ok && !isNilValue(c) {
			if name, found := callNamer(func() (string, bool) { return n.MethodMetric(method) }); found {
				return name, true
			}
		}
	}
	for _, c := range candidates {
		if !c.CanInterface() {
			continue
		}
		if n, ok := c.Interface().(MetricNamer); ok && !isNilValue(c) {
			if name, found := callNamer(func() (string, bool) { return n.MetricName(), true }); found {
				return name, true
			}
		}
	}
	return "", false
}

// callNamer runs a declaration method. Methods promoted through a nil
// embedded pointer panic; that counts as undeclared.
func callNamer(fn func() (string, bool)) (name string, ok bool) {
	defer func() {
		if recover() != nil {
			name, ok = "", false
		}
	}()
	name, ok = fn()
	return name, ok && strings.TrimSpace(name) != ""
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
