package convx

import (
	"math"
	"reflect"
	"time"

	"github.com/globalbus/dalesbred/pkg/errorx"
)

var timeType = reflect.TypeOf(time.Time{})

// coerce applies the built-in structural conversion rules: numeric pairs with
// overflow-checked narrowing, bool, string/[]byte and named types over a
// convertible underlying kind.
func coerce(value any, target reflect.Type) (any, error) {
	v := reflect.ValueOf(value)
	sourceType := v.Type()

	// time.Time never coerces numerically even though it is a struct of integers.
	if sourceType == timeType || target == timeType {
		return nil, errorx.NewConversionError("cannot convert %s to %s", sourceType, target)
	}

	switch {
	case isIntKind(sourceType.Kind()) && isIntKind(target.Kind()):
		return coerceInt(v.Int(), target)
	case isIntKind(sourceType.Kind()) && isUintKind(target.Kind()):
		return coerceIntToUint(v.Int(), target)
	case isUintKind(sourceType.Kind()) && isIntKind(target.Kind()):
		return coerceUintToInt(v.Uint(), target)
	case isUintKind(sourceType.Kind()) && isUintKind(target.Kind()):
		return coerceUint(v.Uint(), target)
	case isIntKind(sourceType.Kind()) && isFloatKind(target.Kind()):
		return reflect.ValueOf(float64(v.Int())).Convert(target).Interface(), nil
	case isUintKind(sourceType.Kind()) && isFloatKind(target.Kind()):
		return reflect.ValueOf(float64(v.Uint())).Convert(target).Interface(), nil
	case isFloatKind(sourceType.Kind()) && isFloatKind(target.Kind()):
		return coerceFloat(v.Float(), target)
	case isFloatKind(sourceType.Kind()) && (isIntKind(target.Kind()) || isUintKind(target.Kind())):
		return coerceFloatToInteger(v.Float(), target)
	case sourceType.Kind() == reflect.Bool && target.Kind() == reflect.Bool:
		return reflect.ValueOf(value).Convert(target).Interface(), nil
	case sourceType.Kind() == reflect.String && target.Kind() == reflect.String:
		return v.Convert(target).Interface(), nil
	case isByteSlice(sourceType) && target.Kind() == reflect.String:
		return string(v.Bytes()), nil
	case sourceType.Kind() == reflect.String && isByteSlice(target):
		return []byte(v.String()), nil
	}

	return nil, errorx.NewConversionError("cannot convert %s to %s", sourceType, target)
}

func coerceInt(value int64, target reflect.Type) (any, error) {
	if value < minIntFor(target.Kind()) || value > maxIntFor(target.Kind()) {
		return nil, errorx.NewConversionError("value %d overflows %s", value, target)
	}

	out := reflect.New(target).Elem()
	out.SetInt(value)

	return out.Interface(), nil
}

func coerceIntToUint(value int64, target reflect.Type) (any, error) {
	if value < 0 || uint64(value) > maxUintFor(target.Kind()) {
		return nil, errorx.NewConversionError("value %d overflows %s", value, target)
	}

	out := reflect.New(target).Elem()
	out.SetUint(uint64(value))

	return out.Interface(), nil
}

func coerceUintToInt(value uint64, target reflect.Type) (any, error) {
	if value > uint64(maxIntFor(target.Kind())) {
		return nil, errorx.NewConversionError("value %d overflows %s", value, target)
	}

	out := reflect.New(target).Elem()
	out.SetInt(int64(value))

	return out.Interface(), nil
}

func coerceUint(value uint64, target reflect.Type) (any, error) {
	if value > maxUintFor(target.Kind()) {
		return nil, errorx.NewConversionError("value %d overflows %s", value, target)
	}

	out := reflect.New(target).Elem()
	out.SetUint(value)

	return out.Interface(), nil
}

func coerceFloat(value float64, target reflect.Type) (any, error) {
	if target.Kind() == reflect.Float32 && !math.IsInf(value, 0) && math.Abs(value) > math.MaxFloat32 {
		return nil, errorx.NewConversionError("value %g overflows %s", value, target)
	}

	out := reflect.New(target).Elem()
	out.SetFloat(value)

	return out.Interface(), nil
}

func coerceFloatToInteger(value float64, target reflect.Type) (any, error) {
	if value != math.Trunc(value) {
		return nil, errorx.NewConversionError("value %g has a fractional part, cannot convert to %s", value, target)
	}

	// float64 cannot represent MaxUint64 or MaxInt64 exactly; converting them
	// rounds up to 2^64 and 2^63, so the bounds for the widest kinds must be
	// exclusive powers of two.
	if isUintKind(target.Kind()) {
		if value < 0 || value >= 0x1p64 {
			return nil, errorx.NewConversionError("value %g overflows %s", value, target)
		}

		if max := maxUintFor(target.Kind()); max != math.MaxUint64 && value > float64(max) {
			return nil, errorx.NewConversionError("value %g overflows %s", value, target)
		}

		out := reflect.New(target).Elem()
		out.SetUint(uint64(value))

		return out.Interface(), nil
	}

	if value < -0x1p63 || value >= 0x1p63 {
		return nil, errorx.NewConversionError("value %g overflows %s", value, target)
	}

	if max := maxIntFor(target.Kind()); max != math.MaxInt64 &&
		(value < float64(minIntFor(target.Kind())) || value > float64(max)) {
		return nil, errorx.NewConversionError("value %g overflows %s", value, target)
	}

	out := reflect.New(target).Elem()
	out.SetInt(int64(value))

	return out.Interface(), nil
}

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isByteSlice(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func minIntFor(k reflect.Kind) int64 {
	switch k {
	case reflect.Int8:
		return math.MinInt8
	case reflect.Int16:
		return math.MinInt16
	case reflect.Int32:
		return math.MinInt32
	default:
		return math.MinInt64
	}
}

func maxIntFor(k reflect.Kind) int64 {
	switch k {
	case reflect.Int8:
		return math.MaxInt8
	case reflect.Int16:
		return math.MaxInt16
	case reflect.Int32:
		return math.MaxInt32
	default:
		return math.MaxInt64
	}
}

func maxUintFor(k reflect.Kind) uint64 {
	switch k {
	case reflect.Uint8:
		return math.MaxUint8
	case reflect.Uint16:
		return math.MaxUint16
	case reflect.Uint32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}
