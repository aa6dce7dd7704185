package marshal

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/swimmadude66/tectonica/internal/model"
)

// Host side servicing of sandbox proxy traps: property and call semantics
// over plain Go values, expressed through reflection. Maps behave like
// objects keyed by string, exported struct fields are properties (json tag
// names honored), struct methods are callable properties, slices answer
// index and length reads, funcs are callable. Values implementing
// PropertyObject answer their property traps themselves instead.

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// PropertyObject is implemented by host values that answer property traps
// themselves instead of through reflection. Sandbox reads and writes land on
// these methods, so implementations carrying their own synchronization stay
// safe when other goroutines access the value while a script runs. Values
// implementing it still cross cached, as proxied objects.
type PropertyObject interface {
	// GetProperty returns the property value; a false ok answers undefined.
	GetProperty(key string) (any, bool)
	// SetProperty writes the property. Errors throw inside the sandbox.
	SetProperty(key string, value any) error
	// DeleteProperty removes the property, reporting whether it did.
	DeleteProperty(key string) bool
	// PropertyKeys lists the own enumerable property names.
	PropertyKeys() []string
}

func isUndefined(v any) bool {
	_, ok := v.(model.Undefined)
	return ok
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fieldNamed resolves key on a struct value by json tag name, exact field
// name, or exported-case field name, in that order.
func fieldNamed(rv reflect.Value, key string) (reflect.Value, bool) {
	t := rv.Type()
	byName := -1
	byUpper := -1
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("json"); ok {
			if name := strings.Split(tag, ",")[0]; name == key {
				return rv.Field(i), true
			}
		}
		if f.Name == key {
			byName = i
		}
		if f.Name == upperFirst(key) {
			byUpper = i
		}
	}
	if byName >= 0 {
		return rv.Field(byName), true
	}
	if byUpper >= 0 {
		return rv.Field(byUpper), true
	}
	return reflect.Value{}, false
}

// fieldName returns the property name a struct field is exposed under.
func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	if tag, ok := f.Tag.Lookup("json"); ok {
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}
	return f.Name, true
}

func methodNamed(rv reflect.Value, key string) (reflect.Value, bool) {
	if mv := rv.MethodByName(key); mv.IsValid() {
		return mv, true
	}
	if mv := rv.MethodByName(upperFirst(key)); mv.IsValid() {
		return mv, true
	}
	return reflect.Value{}, false
}

// hostGet reads property key off v. Missing properties answer undefined,
// like any other object access.
func hostGet(v any, key string) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("property read on nil: %w", model.ErrNotValid)
	}
	if po, ok := v.(PropertyObject); ok {
		val, ok := po.GetProperty(key)
		if !ok {
			return model.Undefined{}, nil
		}
		return val, nil
	}
	rv := reflect.ValueOf(v)

	if mv, ok := methodNamed(rv, key); ok {
		return mv.Interface(), nil
	}

	switch rv.Kind() {
	case reflect.Map:
		kv, err := mapKey(rv.Type(), key)
		if err != nil {
			return nil, err
		}
		el := rv.MapIndex(kv)
		if !el.IsValid() {
			return model.Undefined{}, nil
		}
		return el.Interface(), nil

	case reflect.Pointer:
		if rv.IsNil() {
			return model.Undefined{}, nil
		}
		if rv.Elem().Kind() == reflect.Struct {
			if fv, ok := fieldNamed(rv.Elem(), key); ok {
				return fv.Interface(), nil
			}
		}
		return model.Undefined{}, nil

	case reflect.Struct:
		if fv, ok := fieldNamed(rv, key); ok {
			return fv.Interface(), nil
		}
		return model.Undefined{}, nil

	case reflect.Slice, reflect.Array:
		if key == "length" {
			return float64(rv.Len()), nil
		}
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return model.Undefined{}, nil
		}
		return rv.Index(idx).Interface(), nil

	default:
		return model.Undefined{}, nil
	}
}

// hostSet writes v[key] = val.
func hostSet(v any, key string, val any) error {
	if v == nil {
		return fmt.Errorf("property write on nil: %w", model.ErrNotValid)
	}
	if po, ok := v.(PropertyObject); ok {
		return po.SetProperty(key, val)
	}
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map:
		kv, err := mapKey(rv.Type(), key)
		if err != nil {
			return err
		}
		ev, err := coerce(val, rv.Type().Elem())
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		rv.SetMapIndex(kv, ev)
		return nil

	case reflect.Pointer:
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("property write on %T: %w", v, model.ErrNotValid)
		}
		fv, ok := fieldNamed(rv.Elem(), key)
		if !ok || !fv.CanSet() {
			return fmt.Errorf("property %q is not settable on %T: %w", key, v, model.ErrNotValid)
		}
		ev, err := coerce(val, fv.Type())
		if err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
		fv.Set(ev)
		return nil

	case reflect.Slice:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= rv.Len() {
			return fmt.Errorf("index %q out of range on %T: %w", key, v, model.ErrNotValid)
		}
		ev, err := coerce(val, rv.Type().Elem())
		if err != nil {
			return fmt.Errorf("index %q: %w", key, err)
		}
		rv.Index(idx).Set(ev)
		return nil

	default:
		return fmt.Errorf("property write on %T: %w", v, model.ErrNotValid)
	}
}

// hostHas mirrors the `in` operator.
func hostHas(v any, key string) bool {
	if po, ok := v.(PropertyObject); ok {
		_, present := po.GetProperty(key)
		return present
	}
	got, err := hostGet(v, key)
	if err != nil {
		return false
	}
	if isUndefined(got) {
		// Map entries holding nil still exist.
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Map {
			if kv, err := mapKey(rv.Type(), key); err == nil {
				return rv.MapIndex(kv).IsValid()
			}
		}
		return false
	}
	return true
}

// hostDelete removes key. Only map entries and handled properties can be
// deleted.
func hostDelete(v any, key string) bool {
	if po, ok := v.(PropertyObject); ok {
		return po.DeleteProperty(key)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return false
	}
	kv, err := mapKey(rv.Type(), key)
	if err != nil {
		return false
	}
	rv.SetMapIndex(kv, reflect.Value{})
	return true
}

// hostOwnKeys lists v's own enumerable property names. Map keys are sorted
// so iteration order is stable across crossings.
func hostOwnKeys(v any) []string {
	if po, ok := v.(PropertyObject); ok {
		return po.PropertyKeys()
	}
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		for _, kv := range rv.MapKeys() {
			if kv.Kind() == reflect.String {
				keys = append(keys, kv.String())
			}
		}
		sort.Strings(keys)
		return keys

	case reflect.Pointer:
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return []string{}
		}
		return structKeys(rv.Elem().Type())

	case reflect.Struct:
		return structKeys(rv.Type())

	case reflect.Slice, reflect.Array:
		keys := make([]string, 0, rv.Len()+1)
		for i := 0; i < rv.Len(); i++ {
			keys = append(keys, strconv.Itoa(i))
		}
		keys = append(keys, "length")
		return keys

	default:
		return []string{}
	}
}

func structKeys(t reflect.Type) []string {
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if name, ok := fieldName(t.Field(i)); ok {
			keys = append(keys, name)
		}
	}
	return keys
}

// hostDescriptor builds a plain data descriptor for key, or undefined when
// the property is absent.
func hostDescriptor(v any, key string) (any, error) {
	if !hostHas(v, key) {
		return model.Undefined{}, nil
	}
	got, err := hostGet(v, key)
	if err != nil {
		return nil, err
	}
	return structuralObject{
		"value":        got,
		"writable":     true,
		"enumerable":   true,
		"configurable": true,
	}, nil
}

// hostDefine applies a data descriptor. Accessor descriptors can't cross.
func hostDefine(v any, key string, desc map[string]any) error {
	if _, ok := desc["get"]; ok {
		return fmt.Errorf("accessor descriptors can't cross the sandbox boundary: %w", model.ErrUnsupportedValue)
	}
	if _, ok := desc["set"]; ok {
		return fmt.Errorf("accessor descriptors can't cross the sandbox boundary: %w", model.ErrUnsupportedValue)
	}
	val, ok := desc["value"]
	if !ok {
		return fmt.Errorf("descriptor has no value: %w", model.ErrNotValid)
	}
	return hostSet(v, key, val)
}

// hostApply invokes a cached func. Sandbox arguments are coerced to the
// func's parameter types, a context first parameter is injected, a trailing
// error return is unwrapped and surfaces in the sandbox as an exception.
func hostApply(ctx context.Context, v any, args []any) (res any, err error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%T: %w", v, model.ErrNotAFunction)
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("host function panicked: %v", r)
		}
	}()

	t := rv.Type()
	in := make([]reflect.Value, 0, t.NumIn())
	next := 0

	if t.NumIn() > 0 && t.In(0) == ctxType {
		in = append(in, reflect.ValueOf(ctx))
		next = 1
	}

	for i := next; i < t.NumIn(); i++ {
		pt := t.In(i)

		if t.IsVariadic() && i == t.NumIn()-1 {
			et := pt.Elem()
			for j := i - next; j < len(args); j++ {
				av, err := coerce(args[j], et)
				if err != nil {
					return nil, fmt.Errorf("argument %d: %w", j, err)
				}
				in = append(in, av)
			}
			break
		}

		j := i - next
		if j >= len(args) {
			// Missing arguments call through as zero values.
			in = append(in, reflect.Zero(pt))
			continue
		}
		av, err := coerce(args[j], pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", j, err)
		}
		in = append(in, av)
	}

	outs := rv.Call(in)

	if n := len(outs); n > 0 && t.Out(n-1) == errType {
		if !outs[n-1].IsNil() {
			return nil, outs[n-1].Interface().(error)
		}
		outs = outs[:n-1]
	}

	switch len(outs) {
	case 0:
		return model.Undefined{}, nil
	case 1:
		return outs[0].Interface(), nil
	default:
		vals := make([]any, len(outs))
		for i, o := range outs {
			vals[i] = o.Interface()
		}
		return vals, nil
	}
}

// coerce converts a decoded wire value to the target Go type. Numbers
// arrive as float64 and narrow to any numeric parameter.
func coerce(val any, t reflect.Type) (reflect.Value, error) {
	if val == nil || isUndefined(val) {
		switch t.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		default:
			return reflect.Value{}, fmt.Errorf("can't use %v as %s: %w", val, t, model.ErrNotValid)
		}
	}

	rv := reflect.ValueOf(val)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t), nil
	}

	return reflect.Value{}, fmt.Errorf("can't use %T as %s: %w", val, t, model.ErrNotValid)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func mapKey(t reflect.Type, key string) (reflect.Value, error) {
	kt := t.Key()
	if kt.Kind() != reflect.String {
		return reflect.Value{}, fmt.Errorf("map keyed by %s can't answer property traps: %w", kt, model.ErrUnsupportedValue)
	}
	return reflect.ValueOf(key).Convert(kt), nil
}
