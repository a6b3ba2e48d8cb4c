package safejson

import (
	"bytes"
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CircularRoot replaces a value that refers back to the serialization root.
const CircularRoot = "[Circular ~]"

// Replacer transforms a key/value pair before it is encoded. key is the object
// key or array index under which value was found; the root has key "".
// The returned value is encoded in place of value.
type Replacer func(key string, value any) any

// CycleReplacer returns the substitute for a value that repeats one of its own
// ancestors. path is the key path from the root to that ancestor and is empty
// when the ancestor is the root itself.
type CycleReplacer func(key string, path []string) any

// Options configures Marshal.
type Options struct {
	// Replacer, if set, is applied to every key/value pair after cycle
	// resolution.
	Replacer Replacer

	// Indent is the per-level indentation. Empty produces compact output.
	Indent string

	// OnCycle overrides DefaultCycleReplacer.
	OnCycle CycleReplacer

	// NormalizeStrings NFC-normalizes strings and object keys.
	NormalizeStrings bool
}

// DefaultCycleReplacer marks a cyclic reference with the dotted key path of
// the ancestor it repeats.
func DefaultCycleReplacer(_ string, path []string) any {
	if len(path) == 0 {
		return CircularRoot
	}
	return "[Circular ~." + strings.Join(path, ".") + "]"
}

// Stringify serializes v. replacer and onCycle may be nil; indent may be
// empty for compact output.
func Stringify(v any, replacer Replacer, indent string, onCycle CycleReplacer) string {
	return string(Marshal(v, Options{Replacer: replacer, Indent: indent, OnCycle: onCycle}))
}

// Marshal serializes v according to opts. It never fails: a root value that
// has no JSON form (a function, say) serializes as null.
func Marshal(v any, opts Options) []byte {
	if opts.OnCycle == nil {
		opts.OnCycle = DefaultCycleReplacer
	}
	w := &walker{opts: opts}

	var buf bytes.Buffer
	if !w.encode(&buf, "", reflect.ValueOf(v)) {
		buf.Reset()
		buf.WriteString("null")
	}
	if opts.Indent == "" {
		return buf.Bytes()
	}

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", opts.Indent); err != nil {
		// The walker only emits valid JSON; keep the compact form regardless.
		return buf.Bytes()
	}
	return out.Bytes()
}

// identity is the reference identity of a pointer, map or non-empty slice.
type identity struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

// frame is one level of the ancestor stack. Struct and array values have no
// identity of their own but still contribute their key to the path.
type frame struct {
	key string
	ids []identity
}

type walker struct {
	opts  Options
	stack []frame
}

var (
	marshalerType     = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// encode writes the JSON form of v found under key. It reports false when v
// has no JSON form and should be omitted by the enclosing object.
func (w *walker) encode(buf *bytes.Buffer, key string, v reflect.Value) bool {
	v = unwrapInterface(v)

	if id, ok := identityOf(v); ok {
		if i := w.ancestor(id); i >= 0 {
			v = reflect.ValueOf(w.opts.OnCycle(key, w.pathTo(i)))
		}
	}

	if w.opts.Replacer != nil && (!v.IsValid() || v.CanInterface()) {
		var in any
		if v.IsValid() {
			in = v.Interface()
		}
		v = unwrapInterface(reflect.ValueOf(w.opts.Replacer(key, in)))
	}

	return w.encodeValue(buf, key, v)
}

func (w *walker) encodeValue(buf *bytes.Buffer, key string, v reflect.Value) bool {
	var ids []identity
	for {
		if !v.IsValid() {
			buf.WriteString("null")
			return true
		}
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			buf.WriteString("null")
			return true
		}
		if ok, handled := w.encodeMarshaler(buf, v); handled {
			return ok
		}
		switch v.Kind() {
		case reflect.Interface:
			v = v.Elem()
			continue
		case reflect.Pointer:
			id, _ := identityOf(v)
			if i := w.ancestor(id); i >= 0 {
				w.writeString(buf, fmt.Sprint(w.opts.OnCycle(key, w.pathTo(i))))
				return true
			}
			if containsIdentity(ids, id) {
				w.writeString(buf, fmt.Sprint(w.opts.OnCycle(key, w.pathHere(key))))
				return true
			}
			ids = append(ids, id)
			v = v.Elem()
			continue
		}
		break
	}

	switch v.Kind() {
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		w.writeFloat(buf, v)
	case reflect.Complex64, reflect.Complex128:
		w.writeString(buf, fmt.Sprint(v.Complex()))
	case reflect.String:
		w.writeString(buf, v.String())
	case reflect.Map:
		if v.IsNil() {
			buf.WriteString("null")
			return true
		}
		id, _ := identityOf(v)
		w.push(key, append(ids, id))
		w.writeMap(buf, v)
		w.pop()
	case reflect.Slice:
		if v.IsNil() {
			buf.WriteString("null")
			return true
		}
		if v.Type().Elem().Kind() == reflect.Uint8 && !v.Type().Elem().Implements(marshalerType) {
			w.writeBytes(buf, v)
			return true
		}
		if id, ok := identityOf(v); ok {
			ids = append(ids, id)
		}
		w.push(key, ids)
		w.writeArray(buf, v)
		w.pop()
	case reflect.Array:
		w.push(key, ids)
		w.writeArray(buf, v)
		w.pop()
	case reflect.Struct:
		w.push(key, ids)
		w.writeStruct(buf, v)
		w.pop()
	default:
		// Func, Chan, UnsafePointer.
		return false
	}
	return true
}

// encodeMarshaler uses json.Marshaler or encoding.TextMarshaler when v
// implements one. handled is false when v implements neither.
func (w *walker) encodeMarshaler(buf *bytes.Buffer, v reflect.Value) (ok, handled bool) {
	if !v.CanInterface() {
		return false, false
	}
	t := v.Type()
	switch {
	case t.Implements(marshalerType):
		b, err := callJSONMarshaler(v)
		if err != nil {
			w.writeString(buf, unserializable(t, err))
			return true, true
		}
		if err := json.Compact(buf, b); err != nil {
			w.writeString(buf, unserializable(t, err))
		}
		return true, true
	case t.Implements(textMarshalerType):
		text, err := callTextMarshaler(v)
		if err != nil {
			w.writeString(buf, unserializable(t, err))
			return true, true
		}
		w.writeString(buf, string(text))
		return true, true
	}
	return false, false
}

func callJSONMarshaler(v reflect.Value) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	b, err = v.Interface().(json.Marshaler).MarshalJSON()
	if err == nil && !json.Valid(b) {
		err = fmt.Errorf("invalid JSON output")
	}
	return b, err
}

func callTextMarshaler(v reflect.Value) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return v.Interface().(encoding.TextMarshaler).MarshalText()
}

func unserializable(t reflect.Type, err error) string {
	return fmt.Sprintf("[Unserializable %s: %v]", t, err)
}

func (w *walker) writeMap(buf *bytes.Buffer, v reflect.Value) {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		entries = append(entries, entry{key: w.normalize(mapKey(iter.Key())), val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	buf.WriteByte('{')
	first := true
	for _, e := range entries {
		first = w.writeMember(buf, e.key, e.val, first)
	}
	buf.WriteByte('}')
}

func (w *walker) writeStruct(buf *bytes.Buffer, v reflect.Value) {
	buf.WriteByte('{')
	first := true
	for _, f := range fieldsOf(v.Type()) {
		fv, err := v.FieldByIndexErr(f.index)
		if err != nil {
			// Nil embedded pointer.
			continue
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		first = w.writeMember(buf, w.normalize(f.name), fv, first)
	}
	buf.WriteByte('}')
}

// writeMember writes one object member, omitting it when the value has no
// JSON form. It returns the updated "first member" flag.
func (w *walker) writeMember(buf *bytes.Buffer, key string, v reflect.Value, first bool) bool {
	var member bytes.Buffer
	if !w.encode(&member, key, v) {
		return first
	}
	if !first {
		buf.WriteByte(',')
	}
	w.writeString(buf, key)
	buf.WriteByte(':')
	buf.Write(member.Bytes())
	return false
}

func (w *walker) writeArray(buf *bytes.Buffer, v reflect.Value) {
	buf.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		var elem bytes.Buffer
		if !w.encode(&elem, strconv.Itoa(i), v.Index(i)) {
			buf.WriteString("null")
			continue
		}
		buf.Write(elem.Bytes())
	}
	buf.WriteByte(']')
}

func (w *walker) writeBytes(buf *bytes.Buffer, v reflect.Value) {
	b := make([]byte, v.Len())
	reflect.Copy(reflect.ValueOf(b), v)
	w.writeString(buf, base64.StdEncoding.EncodeToString(b))
}

func (w *walker) writeFloat(buf *bytes.Buffer, v reflect.Value) {
	f := v.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) {
		buf.WriteString("null")
		return
	}
	var b []byte
	if v.Kind() == reflect.Float32 {
		b, _ = json.Marshal(float32(f))
	} else {
		b, _ = json.Marshal(f)
	}
	buf.Write(b)
}

// writeString writes s as a JSON string without HTML escaping.
func (w *walker) writeString(buf *bytes.Buffer, s string) {
	s = w.normalize(s)
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		buf.WriteString(`""`)
		return
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
}

func (w *walker) normalize(s string) string {
	if !w.opts.NormalizeStrings {
		return s
	}
	return norm.NFC.String(s)
}

func (w *walker) push(key string, ids []identity) {
	w.stack = append(w.stack, frame{key: key, ids: ids})
}

func (w *walker) pop() {
	w.stack = w.stack[:len(w.stack)-1]
}

// ancestor returns the stack index of the frame holding id, or -1.
func (w *walker) ancestor(id identity) int {
	if id.ptr == 0 {
		return -1
	}
	for i, f := range w.stack {
		if containsIdentity(f.ids, id) {
			return i
		}
	}
	return -1
}

// pathTo returns the key path from the root to stack[i].
func (w *walker) pathTo(i int) []string {
	if i <= 0 {
		return nil
	}
	path := make([]string, 0, i)
	for _, f := range w.stack[1 : i+1] {
		path = append(path, f.key)
	}
	return path
}

// pathHere returns the key path of a value about to be pushed under key.
func (w *walker) pathHere(key string) []string {
	if len(w.stack) == 0 {
		return nil
	}
	return append(w.pathTo(len(w.stack)-1), key)
}

func containsIdentity(ids []identity, id identity) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func identityOf(v reflect.Value) (identity, bool) {
	if !v.IsValid() {
		return identity{}, false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{ptr: v.Pointer(), typ: v.Type()}, true
	case reflect.Slice:
		if v.Len() == 0 {
			return identity{}, false
		}
		return identity{ptr: v.Pointer(), typ: v.Type(), n: v.Len()}, true
	}
	return identity{}, false
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() && k.Type().Implements(textMarshalerType) {
		if text, err := callTextMarshaler(k); err == nil {
			return string(text)
		}
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	}
	return fmt.Sprint(k)
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
