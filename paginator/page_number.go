package paginator

import (
	"fmt"
	"math"
	"strconv"
	"unicode"

	"github.com/samber/oops"
)

type pageKind uint8

const (
	kindUnset pageKind = iota
	kindInt
	kindString
)

// PageNumber is a requested page number, either an integer or the raw
// string a client sent (usually a query parameter). Build one with IntPage,
// StringPage or PageFromAny; the zero value is not a valid request.
type PageNumber struct {
	kind pageKind
	num  int
	raw  string
}

// IntPage requests a page by number.
func IntPage(n int) PageNumber {
	return PageNumber{kind: kindInt, num: n}
}

// StringPage requests a page by its string form. Strings that are not made
// only of ASCII digits resolve to the first page.
func StringPage(s string) PageNumber {
	return PageNumber{kind: kindString, raw: s}
}

// PageFromAny converts a dynamically typed value into a PageNumber. Every Go
// integer kind and string are accepted, anything else (floats, nil, structs)
// fails with ErrInvalidArgument.
func PageFromAny(v any) (PageNumber, error) {
	switch n := v.(type) {
	case PageNumber:
		if n.IsZero() {
			return PageNumber{}, invalidPageType(v)
		}
		return n, nil
	case string:
		return StringPage(n), nil
	case int:
		return IntPage(n), nil
	case int8:
		return IntPage(int(n)), nil
	case int16:
		return IntPage(int(n)), nil
	case int32:
		return IntPage(int(n)), nil
	case int64:
		return IntPage(clampInt64(n)), nil
	case uint:
		return IntPage(clampUint64(uint64(n))), nil
	case uint8:
		return IntPage(int(n)), nil
	case uint16:
		return IntPage(int(n)), nil
	case uint32:
		return IntPage(clampUint64(uint64(n))), nil
	case uint64:
		return IntPage(clampUint64(n)), nil
	default:
		return PageNumber{}, invalidPageType(v)
	}
}

// IsZero reports whether p was never initialized.
func (p PageNumber) IsZero() bool {
	return p.kind == kindUnset
}

func (p PageNumber) String() string {
	switch p.kind {
	case kindInt:
		return strconv.Itoa(p.num)
	case kindString:
		return strconv.Quote(p.raw)
	default:
		return "<unset>"
	}
}

// Resolve normalizes the request into a page number within [1, totalPages].
// A totalPages below one is treated as a single empty page.
func (p PageNumber) Resolve(totalPages int) (int, error) {
	if totalPages < 1 {
		totalPages = 1
	}

	var number int
	switch p.kind {
	case kindInt:
		number = p.num
	case kindString:
		number = parseDigits(p.raw, totalPages)
	default:
		return 0, invalidPageType(p)
	}

	if number <= 0 {
		return 1, nil
	}

	if number > totalPages {
		return totalPages, nil
	}

	return number, nil
}

// parseDigits accepts strings made only of Unicode decimal digits, so "42"
// and "٤٢" both give 42. Values too large for an int are past every page, so
// they resolve to the last one.
func parseDigits(s string, totalPages int) int {
	if s == "" {
		return 1
	}

	n, overflow := 0, false
	for _, r := range s {
		d, ok := decimalDigit(r)
		if !ok {
			return 1
		}
		if overflow {
			continue
		}
		if n > (math.MaxInt-d)/10 {
			overflow = true
			continue
		}
		n = n*10 + d
	}

	if overflow {
		return totalPages
	}
	return n
}

// decimalDigit returns the value of r when it is in the Nd category. Every
// Nd block is a run of ten code points from zero to nine.
func decimalDigit(r rune) (int, bool) {
	if r >= '0' && r <= '9' {
		return int(r - '0'), true
	}

	for _, rg := range unicode.Nd.R16 {
		lo, hi, stride := rune(rg.Lo), rune(rg.Hi), rune(rg.Stride)
		if r >= lo && r <= hi && (r-lo)%stride == 0 {
			return int((r-lo)/stride) % 10, true
		}
	}

	for _, rg := range unicode.Nd.R32 {
		lo, hi, stride := rune(rg.Lo), rune(rg.Hi), rune(rg.Stride)
		if r >= lo && r <= hi && (r-lo)%stride == 0 {
			return int((r-lo)/stride) % 10, true
		}
	}

	return 0, false
}

func clampInt64(n int64) int {
	if n > math.MaxInt {
		return math.MaxInt
	}
	if n < math.MinInt {
		return math.MinInt
	}
	return int(n)
}

func clampUint64(n uint64) int {
	if n > math.MaxInt {
		return math.MaxInt
	}
	return int(n)
}

func invalidPageType(v any) error {
	return oops.
		In("paginator").
		Code("INVALID_ARGUMENT").
		With("type", fmt.Sprintf("%T", v)).
		Wrapf(ErrInvalidArgument, "page number must be an integer or a string, got %T", v)
}
