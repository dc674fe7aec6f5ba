// Package pathmap provides PathMap, a nested key-value container addressed by dot-delimited paths.
//
// PathMap is used by the request builder to accumulate query and body parameters:
//
//	m := pathmap.New()
//	m.Set("user.name", "John")   // {"user": {"name": "John"}}
//	m.Merge(map[string]any{"page": 1})
//	m.Get("user.name", nil)      // "John"
//
// Nested nodes keep insertion order, so encoded query strings and JSON bodies are deterministic.
//
// Writing a path through an existing scalar value replaces the scalar with a new map,
// for example setting "a.b" when "a" holds a string. This is not an error.
//
// A numeric segment addresses an item of a list: "tags.0" reads or replaces the first tag.
// Maps of any value type and lists of maps are stored as nested nodes,
// so reading them back returns map[string]any and []any values.
package pathmap

import (
	"bytes"
	jsonlib "encoding/json"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/keboola/go-utils/pkg/orderedmap"
)

// Separator separates path segments.
const Separator = "."

// PathMap is a nested key-value container addressed by dot-delimited paths.
// It is not safe for concurrent use.
type PathMap struct {
	root *orderedmap.OrderedMap
}

// New creates an empty PathMap.
func New() *PathMap {
	return &PathMap{root: orderedmap.New()}
}

// FromMap creates a PathMap from a plain map, top-level keys are inserted in sorted order.
func FromMap(values map[string]any) *PathMap {
	m := New()
	m.Merge(values)
	return m
}

// Set writes the value at the dot-delimited path, creating intermediate maps as needed.
// A numeric segment addresses an item of a list, the list is copied and the item is replaced.
// An index equal to the list length appends a new item. Other segments convert the list
// to a map keyed by item indexes, so no item is lost.
// A non-map, non-list value found on the way is replaced by a new map.
func (m *PathMap) Set(path string, value any) {
	m.root = setIn(m.root, strings.Split(path, Separator), value).(*orderedmap.OrderedMap)
}

func setIn(current any, keys []string, value any) any {
	if len(keys) == 0 {
		return toValue(value)
	}
	key := keys[0]

	if list, ok := listValue(current); ok {
		index, isIndex := parseIndex(key)
		switch {
		case isIndex && index < list.Len():
			return setListItem(list, index, setIn(list.Index(index).Interface(), keys[1:], value))
		case isIndex && index == list.Len():
			return setListItem(list, index, setIn(nil, keys[1:], value))
		default:
			current = listToNode(list)
		}
	}

	node, ok := current.(*orderedmap.OrderedMap)
	if !ok {
		// Missing or scalar, the previous value is dropped
		node = orderedmap.New()
	}
	child, _ := node.Get(key)
	node.Set(key, setIn(child, keys[1:], value))
	return node
}

// Merge overlays top-level keys of the values map.
// Keys present on both sides take the incoming value, keys unique to either side are kept.
// Keys are not interpreted as paths.
func (m *PathMap) Merge(values map[string]any) {
	for _, key := range sortedKeys(values) {
		m.root.Set(key, toValue(values[key]))
	}
}

// Lookup returns the value at the path and true, or nil and false if the path doesn't exist.
// A numeric segment addresses an item of a list.
// Intermediate maps are returned as a plain map[string]any copy.
func (m *PathMap) Lookup(path string) (any, bool) {
	var value any = m.root
	for _, key := range strings.Split(path, Separator) {
		if list, ok := listValue(value); ok {
			index, isIndex := parseIndex(key)
			if !isIndex || index >= list.Len() {
				return nil, false
			}
			value = list.Index(index).Interface()
			continue
		}
		node, ok := value.(*orderedmap.OrderedMap)
		if !ok {
			return nil, false
		}
		if value, ok = node.Get(key); !ok {
			return nil, false
		}
	}
	return toPlain(value), true
}

// Get returns the value at the path, or def if the path doesn't exist.
func (m *PathMap) Get(path string, def any) any {
	if v, found := m.Lookup(path); found {
		return v
	}
	return def
}

// Keys returns top-level keys in insertion order.
func (m *PathMap) Keys() []string {
	return m.root.Keys()
}

// Len returns number of top-level keys.
func (m *PathMap) Len() int {
	return len(m.root.Keys())
}

// IsEmpty returns true if the map has no keys.
func (m *PathMap) IsEmpty() bool {
	return m.Len() == 0
}

// Clone returns a deep copy of the map.
// Leaf values are copied by assignment.
func (m *PathMap) Clone() *PathMap {
	return &PathMap{root: cloneNode(m.root)}
}

// ToMap returns a deep copy of the map as plain nested map[string]any values.
func (m *PathMap) ToMap() map[string]any {
	return toPlain(m.root).(map[string]any)
}

// MarshalJSON implements JSON encoding, keys are encoded in insertion order.
func (m *PathMap) MarshalJSON() ([]byte, error) {
	raw, err := m.root.MarshalJSON()
	if err != nil {
		return nil, err
	}
	// OrderedMap output may contain new lines
	var out bytes.Buffer
	if err := jsonlib.Compact(&out, raw); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (m *PathMap) String() string {
	return m.Encode()
}

// toValue converts nested maps to ordered nodes, so later path writes can descend into them.
// Lists containing maps or lists are converted to []any with converted items.
func toValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case *PathMap:
		if v == nil {
			return nil
		}
		return cloneNode(v.root)
	case *orderedmap.OrderedMap:
		return cloneNode(v)
	case []byte:
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		in := mapToAny(rv)
		node := orderedmap.New()
		for _, key := range sortedKeys(in) {
			node.Set(key, toValue(in[key]))
		}
		return node
	case reflect.Slice, reflect.Array:
		switch rv.Type().Elem().Kind() {
		case reflect.Interface, reflect.Map, reflect.Slice, reflect.Array, reflect.Pointer:
			out := make([]any, rv.Len())
			for i := range out {
				out[i] = toValue(rv.Index(i).Interface())
			}
			return out
		}
	}
	return value
}

func toPlain(value any) any {
	switch v := value.(type) {
	case *orderedmap.OrderedMap:
		out := make(map[string]any, len(v.Keys()))
		for _, key := range v.Keys() {
			child, _ := v.Get(key)
			out[key] = toPlain(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = toPlain(item)
		}
		return out
	default:
		return value
	}
}

func cloneNode(node *orderedmap.OrderedMap) *orderedmap.OrderedMap {
	out := orderedmap.New()
	if node == nil {
		return out
	}
	for _, key := range node.Keys() {
		child, _ := node.Get(key)
		out.Set(key, cloneValue(child))
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case *orderedmap.OrderedMap:
		return cloneNode(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// listValue returns the value as a list, []byte is a scalar.
func listValue(value any) (reflect.Value, bool) {
	if value == nil {
		return reflect.Value{}, false
	}
	if _, ok := value.([]byte); ok {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, false
	}
	return rv, true
}

// parseIndex accepts only canonical non-negative integers, "01" or "+1" are map keys.
func parseIndex(key string) (int, bool) {
	index, err := strconv.Atoi(key)
	if err != nil || index < 0 || strconv.Itoa(index) != key {
		return 0, false
	}
	return index, true
}

// setListItem returns a copy of the list with the item at the index, index == len appends.
// The list type is kept if the item is assignable to its element type, otherwise []any is returned.
func setListItem(list reflect.Value, index int, item any) any {
	length := list.Len()
	if index == length {
		length++
	}

	elemType := list.Type().Elem()
	itemValue := reflect.ValueOf(item)
	if item != nil && itemValue.Type().AssignableTo(elemType) {
		out := reflect.MakeSlice(reflect.SliceOf(elemType), length, length)
		reflect.Copy(out, list)
		out.Index(index).Set(itemValue)
		return out.Interface()
	}

	out := make([]any, length)
	for i := 0; i < list.Len(); i++ {
		out[i] = list.Index(i).Interface()
	}
	out[index] = item
	return out
}

// listToNode converts the list to a map keyed by item indexes.
func listToNode(list reflect.Value) *orderedmap.OrderedMap {
	node := orderedmap.New()
	for i := 0; i < list.Len(); i++ {
		node.Set(strconv.Itoa(i), list.Index(i).Interface())
	}
	return node
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
