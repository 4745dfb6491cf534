// Package ctyconv converts between cty.Value and plain Go values for the
// adapters that talk to the outside world (model clients, tool transports,
// JSON envelopes).
package ctyconv

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Null is the untyped null used for "no value".
var Null = cty.NullVal(cty.DynamicPseudoType)

// ToNative recursively converts a cty.Value to its most natural Go counterpart.
// Numbers become float64 unless they are whole and fit an int64.
func ToNative(v cty.Value) (any, error) {
	if v.Type() == cty.NilType {
		return nil, nil
	}
	v, _ = v.UnmarkDeep()
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()

	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert cty.Number to float64: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		slice := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ToNative(elem)
			if err != nil {
				return nil, err
			}
			slice = append(slice, native)
		}
		return slice, nil

	case ty.IsObjectType() || ty.IsMapType():
		goMap := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			keyStr := key.AsString()
			native, err := ToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", keyStr, err)
			}
			goMap[keyStr] = native
		}
		return goMap, nil

	default:
		return nil, fmt.Errorf("unsupported cty type for conversion: %s", ty.FriendlyName())
	}
}

// FromNative converts a Go value into a cty.Value. Maps become objects and
// slices become tuples so that heterogeneous JSON data round-trips.
func FromNative(data any) (cty.Value, error) {
	switch v := data.(type) {
	case nil:
		return Null, nil
	case cty.Value:
		return v, nil
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case float64:
		return cty.NumberFloatVal(v), nil
	case float32:
		return cty.NumberFloatVal(float64(v)), nil
	case int:
		return cty.NumberIntVal(int64(v)), nil
	case int32:
		return cty.NumberIntVal(int64(v)), nil
	case int64:
		return cty.NumberIntVal(v), nil
	case uint64:
		return cty.NumberUIntVal(v), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(v))
		for key, val := range v {
			converted, err := FromNative(val)
			if err != nil {
				return cty.NilVal, fmt.Errorf("in attribute '%s': %w", key, err)
			}
			attrs[key] = converted
		}
		return cty.ObjectVal(attrs), nil
	case []any:
		elems := make([]cty.Value, 0, len(v))
		for _, val := range v {
			converted, err := FromNative(val)
			if err != nil {
				return cty.NilVal, err
			}
			elems = append(elems, converted)
		}
		return cty.TupleVal(elems), nil
	default:
		ty, err := gocty.ImpliedType(v)
		if err != nil {
			return cty.NilVal, fmt.Errorf("unsupported type for conversion to cty.Value: %T", v)
		}
		return gocty.ToCtyValue(v, ty)
	}
}

// Display renders a value for humans: strings verbatim, null as "null",
// everything else as JSON.
func Display(v cty.Value) string {
	if v.Type() == cty.NilType {
		return "null"
	}
	v, _ = v.UnmarkDeep()
	if v.IsNull() {
		return "null"
	}
	if !v.IsKnown() {
		return "(unknown)"
	}
	if v.Type() == cty.String {
		return v.AsString()
	}
	b, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		return v.GoString()
	}
	return string(b)
}

// MarshalJSON encodes v as plain JSON (no type envelope). NilVal and null
// encode as JSON null.
func MarshalJSON(v cty.Value) ([]byte, error) {
	if v.Type() == cty.NilType {
		return []byte("null"), nil
	}
	v, _ = v.UnmarkDeep()
	if v.IsNull() {
		return []byte("null"), nil
	}
	return ctyjson.Marshal(v, v.Type())
}

// UnmarshalJSON decodes arbitrary JSON into a cty.Value using the implied type.
func UnmarshalJSON(b []byte) (cty.Value, error) {
	if len(b) == 0 {
		return Null, nil
	}
	ty, err := ctyjson.ImpliedType(b)
	if err != nil {
		return cty.NilVal, fmt.Errorf("inferring type: %w", err)
	}
	return ctyjson.Unmarshal(b, ty)
}
