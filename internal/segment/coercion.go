// internal/segment/coercion.go
package segment

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/x12keeper/internal/types"
)

/*
 * Typed reads for X12 simple data elements.
 *
 * Element values are stored as the raw strings the parser handed over.
 * Coerce interprets a value according to its X12 data element type:
 *
 *   - AN, ID: string, returned unchanged (padding preserved)
 *   - N0..N9: numeric with implied decimal places, float64 (N2 "1250" = 12.50)
 *   - R:      explicit decimal, float64; no exponent notation
 *   - DT:     date, time.Time in UTC; CCYYMMDD or YYMMDD
 *   - TM:     time of day, time.Duration since midnight; HHMM, HHMMSS, HHMMSSd..
 *
 * An empty value is null (CoercionResult.IsNull), not a coercion failure:
 * X12 omits optional elements by leaving them empty.
 */

// ElementType is an X12 simple data element type code.
type ElementType string

const (
	TypeAlphanumeric ElementType = "AN"
	TypeIdentifier   ElementType = "ID"
	TypeDecimal      ElementType = "R"
	TypeDate         ElementType = "DT"
	TypeTime         ElementType = "TM"
	TypeNumeric      ElementType = "N0"
)

// Valid reports whether t is a known type code. The empty type is valid
// and means AN.
func (t ElementType) Valid() bool {
	switch t {
	case "", TypeAlphanumeric, TypeIdentifier, TypeDecimal, TypeDate, TypeTime:
		return true
	}
	_, ok := t.impliedDecimals()
	return ok
}

// impliedDecimals returns n for Nn types.
func (t ElementType) impliedDecimals() (int, bool) {
	if len(t) != 2 || t[0] != 'N' || t[1] < '0' || t[1] > '9' {
		return 0, false
	}
	return int(t[1] - '0'), true
}

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if the element was empty
}

// String renders the coerced value for display. Dates print as CCYY-MM-DD,
// times as a duration since midnight. Null renders empty.
func (r CoercionResult) String() string {
	if r.IsNull {
		return ""
	}
	switch v := r.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format("2006-01-02")
	case time.Duration:
		return v.String()
	}
	return ""
}

// Coerce converts a raw element value to the Go value for its type.
// Returns ErrCoercionFailed if value does not parse as t.
func Coerce(value string, t ElementType) (CoercionResult, error) {
	if value == "" {
		return CoercionResult{IsNull: true}, nil
	}

	switch t {
	case "", TypeAlphanumeric, TypeIdentifier:
		return CoercionResult{Value: value}, nil
	case TypeDecimal:
		return coerceDecimal(value)
	case TypeDate:
		return coerceDate(value)
	case TypeTime:
		return coerceTime(value)
	}

	if n, ok := t.impliedDecimals(); ok {
		return coerceNumeric(value, n)
	}
	return CoercionResult{}, types.ErrCoercionFailed
}

// Typed resolves ref and coerces its value using the element type registered
// for that position (AN when none was registered).
func (s *Segment) Typed(ref string) (CoercionResult, error) {
	index, err := s.Resolve(ref)
	if err != nil {
		return CoercionResult{}, err
	}
	return Coerce(s.elements[index], s.kinds[index])
}

// TypeOf returns the element type registered for a position.
func (s *Segment) TypeOf(index int) ElementType {
	if t, ok := s.kinds[index]; ok {
		return t
	}
	return TypeAlphanumeric
}

// coerceNumeric parses an Nn value: optional sign, digits only.
// Whitespace is trimmed; whitespace-only values are not numbers.
func coerceNumeric(value string, decimals int) (CoercionResult, error) {
	v := strings.TrimSpace(value)
	digits := strings.TrimPrefix(v, "-")
	if digits == "" || !allDigits(digits) {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	return CoercionResult{Value: float64(n) / math.Pow10(decimals)}, nil
}

// coerceDecimal parses an R value: optional sign, digits, at most one point.
// Rejects exponents and the Inf/NaN spellings ParseFloat would accept.
func coerceDecimal(value string) (CoercionResult, error) {
	v := strings.TrimSpace(value)
	body := strings.TrimPrefix(v, "-")
	if body == "" || body == "." || strings.Count(body, ".") > 1 || !allDigits(strings.Replace(body, ".", "", 1)) {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	return CoercionResult{Value: f}, nil
}

// coerceDate parses CCYYMMDD (GS04) or YYMMDD (ISA09).
func coerceDate(value string) (CoercionResult, error) {
	var layout string
	switch len(value) {
	case 8:
		layout = "20060102"
	case 6:
		layout = "060102"
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
	if !allDigits(value) {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	d, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		return CoercionResult{}, types.ErrCoercionFailed
	}
	return CoercionResult{Value: d}, nil
}

// coerceTime parses HHMM, HHMMSS or HHMMSS followed by 1-2 decimal seconds.
func coerceTime(value string) (CoercionResult, error) {
	if len(value) < 4 || len(value) > 8 || len(value) == 5 || !allDigits(value) {
		return CoercionResult{}, types.ErrCoercionFailed
	}

	hh, _ := strconv.Atoi(value[0:2])
	mm, _ := strconv.Atoi(value[2:4])
	var ss, frac int
	fracDigits := 0
	if len(value) >= 6 {
		ss, _ = strconv.Atoi(value[4:6])
	}
	if len(value) > 6 {
		frac, _ = strconv.Atoi(value[6:])
		fracDigits = len(value) - 6
	}
	if hh > 23 || mm > 59 || ss > 59 {
		return CoercionResult{}, types.ErrCoercionFailed
	}

	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
	d += time.Duration(frac) * time.Second / time.Duration(math.Pow10(fracDigits))
	return CoercionResult{Value: d}, nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
