package bindings

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/pattern"
	"golang.org/x/sys/unix"
)

type separatedBinder interface {
	bindText(raw string, sep byte) error
}

type fieldPlan struct {
	index    int
	key      string
	required bool
	def      *string
	sep      byte
	pointer  bool
}

type structPlan struct {
	fields []fieldPlan
	keys   map[string]bool
}

var plans sync.Map // reflect.Type -> *structPlan

// Bind fills the struct pointed to by out from args. Fields are matched by
// their `arg:"name"` tag; a field is optional when it is a pointer, carries
// the ",optional" tag option, or declares a `default:"..."` value. List
// fields read their separator from `sep:"..."` (default ",").
//
// Arguments that name no field are rejected, then fields are bound in
// declaration order and the first failure is returned.
func Bind(args map[string]string, out interface{}) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bindings: Bind needs a pointer to a struct, got %T", out)
	}
	v = v.Elem()

	plan, err := planFor(v.Type())
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !plan.keys[k] {
			return compliance.BindingError(unix.EINVAL, "unknown parameter '%s'", k)
		}
	}

	for _, f := range plan.fields {
		raw, ok := args[f.key]
		if !ok {
			if f.def == nil {
				if f.required {
					return missingParameter(f.key)
				}
				continue
			}
			raw = *f.def
		}

		field := v.Field(f.index)
		target := field
		if f.pointer {
			target = reflect.New(field.Type().Elem()).Elem()
		}
		if err := bindValue(target, raw, f); err != nil {
			return err
		}
		if f.pointer {
			field.Set(target.Addr())
		}
	}
	return nil
}

func bindValue(v reflect.Value, raw string, f fieldPlan) error {
	switch p := v.Addr().Interface().(type) {
	case separatedBinder:
		return p.bindText(raw, f.sep)
	case *string:
		*p = raw
		return nil
	case *int:
		return assign(p, raw)
	case *bool:
		return assign(p, raw)
	case *Mode:
		return assign(p, raw)
	case *pattern.Pattern:
		return assign(p, raw)
	case encoding.TextUnmarshaler:
		if err := p.UnmarshalText([]byte(raw)); err != nil {
			if compliance.KindOf(err) != compliance.KindGeneric {
				return err
			}
			return compliance.BindingError(unix.EINVAL, "invalid value '%s' for '%s' parameter: %v", raw, f.key, err)
		}
		return nil
	}
	return fmt.Errorf("bindings: unsupported field type %s", v.Type())
}

func assign[T Value](dst *T, raw string) error {
	v, err := Parse[T](raw)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func planFor(t reflect.Type) (*structPlan, error) {
	if cached, ok := plans.Load(t); ok {
		return cached.(*structPlan), nil
	}

	plan := &structPlan{keys: make(map[string]bool)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("arg")
		if !ok || !sf.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			return nil, fmt.Errorf("bindings: field %s.%s has an empty arg tag", t.Name(), sf.Name)
		}
		if plan.keys[name] {
			return nil, fmt.Errorf("bindings: duplicate arg %q in %s", name, t.Name())
		}

		f := fieldPlan{
			index:    i,
			key:      name,
			required: true,
			sep:      ',',
			pointer:  sf.Type.Kind() == reflect.Pointer,
		}
		if opts == "optional" || f.pointer {
			f.required = false
		}
		if def, ok := sf.Tag.Lookup("default"); ok {
			f.required = false
			f.def = &def
		}
		if sep, ok := sf.Tag.Lookup("sep"); ok {
			if len(sep) != 1 {
				return nil, fmt.Errorf("bindings: field %s.%s separator must be one byte", t.Name(), sf.Name)
			}
			f.sep = sep[0]
		}

		elem := sf.Type
		if f.pointer {
			elem = elem.Elem()
		}
		if !supported(elem) {
			return nil, fmt.Errorf("bindings: field %s.%s has unsupported type %s", t.Name(), sf.Name, elem)
		}

		plan.fields = append(plan.fields, f)
		plan.keys[name] = true
	}

	actual, _ := plans.LoadOrStore(t, plan)
	return actual.(*structPlan), nil
}

var (
	separatedType   = reflect.TypeOf((*separatedBinder)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func supported(t reflect.Type) bool {
	switch t {
	case reflect.TypeOf(""), reflect.TypeOf(0), reflect.TypeOf(false),
		reflect.TypeOf(Mode(0)), reflect.TypeOf(pattern.Pattern{}):
		return true
	}
	ptr := reflect.PointerTo(t)
	return ptr.Implements(separatedType) || ptr.Implements(unmarshalerType)
}
