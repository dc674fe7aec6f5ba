package pathmap

import (
	"fmt"
	"math/big"
	"reflect"
)

// ArithmeticError is returned by Increment if the current value or the delta is not a number.
// A missing value is an error too, it is not treated as zero.
type ArithmeticError struct {
	Path  string
	Value any
	Delta any
	Found bool
}

func (e *ArithmeticError) Error() string {
	switch {
	case !e.Found:
		return fmt.Sprintf(`cannot increment "%s": value not found`, e.Path)
	case !isNumber(e.Value):
		return fmt.Sprintf(`cannot increment "%s": value of type %T is not a number`, e.Path, e.Value)
	default:
		return fmt.Sprintf(`cannot increment "%s": delta of type %T is not a number`, e.Path, e.Delta)
	}
}

// Increment adds delta to the numeric value at the path.
//
// If both values are integers and the sum fits the type of the current value, the result keeps the type.
// Otherwise, the result is float64, an integer never wraps around.
func (m *PathMap) Increment(path string, delta any) error {
	current, found := m.Lookup(path)
	if !found || !isNumber(current) || !isNumber(delta) {
		return &ArithmeticError{Path: path, Value: current, Delta: delta, Found: found}
	}

	var result any
	if isInteger(current) && isInteger(delta) {
		sum := new(big.Int).Add(toBigInt(current), toBigInt(delta))
		if v, ok := convertInteger(sum, reflect.TypeOf(current)); ok {
			result = v
		} else {
			result, _ = new(big.Float).SetInt(sum).Float64()
		}
	} else {
		result = toFloat64(current) + toFloat64(delta)
	}

	m.Set(path, result)
	return nil
}

func isInteger(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func isNumber(v any) bool {
	if isInteger(v) {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toBigInt(v any) *big.Int {
	rv := reflect.ValueOf(v)
	if rv.CanInt() {
		return big.NewInt(rv.Int())
	}
	return new(big.Int).SetUint64(rv.Uint())
}

// convertInteger converts the value to the integer type, false is returned if it doesn't fit.
func convertInteger(v *big.Int, t reflect.Type) (any, bool) {
	out := reflect.New(t).Elem()
	if out.CanInt() {
		if !v.IsInt64() || out.OverflowInt(v.Int64()) {
			return nil, false
		}
		out.SetInt(v.Int64())
		return out.Interface(), true
	}
	if !v.IsUint64() || out.OverflowUint(v.Uint64()) {
		return nil, false
	}
	out.SetUint(v.Uint64())
	return out.Interface(), true
}

func toFloat64(v any) float64 {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanFloat():
		return rv.Float()
	case rv.CanInt():
		return float64(rv.Int())
	default:
		return float64(rv.Uint())
	}
}
