package safejson

import (
	"reflect"
	"strings"
	"sync"
)

// field describes one encoded struct member.
type field struct {
	name      string
	index     []int
	omitEmpty bool
}

var fieldCache sync.Map // reflect.Type -> []field

// fieldsOf returns the encoded members of struct type t in declaration
// order. Untagged embedded structs are flattened; the shallower of two
// members with the same name wins.
func fieldsOf(t reflect.Type) []field {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]field)
	}
	fields := collectFields(t, nil, map[reflect.Type]bool{})

	seen := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, dup := seen[f.name]; dup {
			if len(f.index) < len(out[i].index) {
				out[i] = f
			}
			continue
		}
		seen[f.name] = len(out)
		out = append(out, f)
	}

	actual, _ := fieldCache.LoadOrStore(t, out)
	return actual.([]field)
}

func collectFields(t reflect.Type, parent []int, visiting map[reflect.Type]bool) []field {
	if visiting[t] {
		return nil
	}
	visiting[t] = true
	defer delete(visiting, t)

	var fields []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		index := append(append([]int(nil), parent...), i)

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				fields = append(fields, collectFields(ft, index, visiting)...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		fields = append(fields, field{
			name:      name,
			index:     index,
			omitEmpty: hasOption(opts, "omitempty"),
		})
	}
	return fields
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}
