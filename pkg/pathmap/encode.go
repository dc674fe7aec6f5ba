package pathmap

import (
	jsonlib "encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
	"github.com/spf13/cast"
)

type pair struct {
	key   string
	value string
}

// Values flattens the map to url.Values using the bracket notation:
// {"a": {"b": "x"}, "list": ["y", "z"]} is converted to a[b]=x, list[0]=y, list[1]=z.
// Nil values are skipped, booleans are encoded as "1" and "0".
func (m *PathMap) Values() url.Values {
	out := make(url.Values)
	for _, p := range m.pairs() {
		out.Add(p.key, p.value)
	}
	return out
}

// Encode encodes the map in the URL encoded form, see Values.
// Unlike url.Values.Encode, keys keep insertion order.
func (m *PathMap) Encode() string {
	var b strings.Builder
	for i, p := range m.pairs() {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// Walk calls fn for each flattened key and value in insertion order, see Values.
func (m *PathMap) Walk(fn func(key, value string)) {
	for _, p := range m.pairs() {
		fn(p.key, p.value)
	}
}

func (m *PathMap) pairs() (out []pair) {
	for _, key := range m.root.Keys() {
		value, _ := m.root.Get(key)
		out = flatten(out, key, value)
	}
	return out
}

func flatten(out []pair, key string, value any) []pair {
	switch v := value.(type) {
	case nil:
		return out
	case *orderedmap.OrderedMap:
		for _, k := range v.Keys() {
			child, _ := v.Get(k)
			out = flatten(out, key+"["+k+"]", child)
		}
		return out
	case []byte:
		return append(out, pair{key: key, value: string(v)})
	case bool:
		if v {
			return append(out, pair{key: key, value: "1"})
		}
		return append(out, pair{key: key, value: "0"})
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			out = flatten(out, fmt.Sprintf("%s[%d]", key, i), rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return flatten(out, key, toValue(mapToAny(rv)))
		}
	}
	return append(out, pair{key: key, value: castToString(value)})
}

func mapToAny(rv reflect.Value) map[string]any {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out
}

func castToString(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	// Structs and other values without a scalar representation are encoded as JSON
	if b, err := jsonlib.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
