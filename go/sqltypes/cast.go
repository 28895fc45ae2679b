/*
Copyright 2025 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sqltypes

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"vitess.io/vtexec/go/vt/vterrors"
)

// DecimalContext is used for all decimal arithmetic.
var DecimalContext = apd.BaseContext.WithPrecision(40)

func coercionError(v Value, to Kind) error {
	return vterrors.NewErrorf(vterrors.INVALID_ARGUMENT, vterrors.CantCoerce, "cannot cast %s %s to %s", v.kind, v.ToSQL(), to)
}

// ToInt64 converts a numeric, boolean or text value to int64.
func ToInt64(v Value) (int64, error) {
	switch v.kind {
	case Int64, Bool:
		return v.i, nil
	case Float64:
		if math.IsNaN(v.f) || v.f > math.MaxInt64 || v.f < math.MinInt64 {
			return 0, vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "%v is out of range for int64", v.f)
		}
		return int64(math.RoundToEven(v.f)), nil
	case Decimal:
		var r apd.Decimal
		if _, err := DecimalContext.RoundToIntegralValue(&r, v.d); err != nil {
			return 0, coercionError(v, Int64)
		}
		i, err := r.Int64()
		if err != nil {
			return 0, vterrors.NewErrorf(vterrors.OUT_OF_RANGE, vterrors.DataOutOfRange, "%s is out of range for int64", v.d.String())
		}
		return i, nil
	case Text:
		i, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, coercionError(v, Int64)
		}
		return i, nil
	}
	return 0, coercionError(v, Int64)
}

// ToFloat64 converts a numeric, boolean or text value to float64.
func ToFloat64(v Value) (float64, error) {
	switch v.kind {
	case Int64, Bool:
		return float64(v.i), nil
	case Float64:
		return v.f, nil
	case Decimal:
		f, err := v.d.Float64()
		if err != nil {
			return 0, coercionError(v, Float64)
		}
		return f, nil
	case Text:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, coercionError(v, Float64)
		}
		return f, nil
	}
	return 0, coercionError(v, Float64)
}

// ToDecimal converts a numeric, boolean or text value to a decimal.
// The returned decimal is owned by the caller.
func ToDecimal(v Value) (*apd.Decimal, error) {
	d := new(apd.Decimal)
	switch v.kind {
	case Int64, Bool:
		return d.SetInt64(v.i), nil
	case Float64:
		if _, err := d.SetFloat64(v.f); err != nil {
			return nil, coercionError(v, Decimal)
		}
		return d, nil
	case Decimal:
		return d.Set(v.d), nil
	case Text:
		if _, _, err := d.SetString(strings.TrimSpace(v.s)); err != nil {
			return nil, coercionError(v, Decimal)
		}
		return d, nil
	}
	return nil, coercionError(v, Decimal)
}

// ToBool converts a value to a boolean using the usual truthiness rules
// for numbers and the SQL spellings of true and false for text.
func ToBool(v Value) (bool, error) {
	switch v.kind {
	case Bool, Int64:
		return v.i != 0, nil
	case Float64:
		return v.f != 0, nil
	case Decimal:
		return v.d.Cmp(decimalZero) != 0, nil
	case Text:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "t", "true", "yes", "on", "1":
			return true, nil
		case "f", "false", "no", "off", "0":
			return false, nil
		}
	}
	return false, coercionError(v, Bool)
}

// Cast converts v to the given kind. NULL casts to NULL.
func Cast(v Value, to Kind) (Value, error) {
	if v.IsNull() || v.kind == to {
		return v, nil
	}
	switch to {
	case Null:
		return NULL, nil
	case Bool:
		b, err := ToBool(v)
		return NewBool(b), err
	case Int64:
		i, err := ToInt64(v)
		return NewInt64(i), err
	case Float64:
		f, err := ToFloat64(v)
		return NewFloat64(f), err
	case Decimal:
		d, err := ToDecimal(v)
		if err != nil {
			return NULL, err
		}
		return Value{kind: Decimal, d: d}, nil
	case Text:
		return NewText(v.String()), nil
	}
	return NULL, coercionError(v, to)
}

// IsIntegral returns true if a numeric value has no fractional part.
func IsIntegral(v Value) bool {
	switch v.kind {
	case Int64:
		return true
	case Float64:
		return v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0)
	case Decimal:
		var integ, frac apd.Decimal
		v.d.Modf(&integ, &frac)
		return frac.IsZero()
	}
	return false
}
