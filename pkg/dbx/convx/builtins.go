package convx

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/globalbus/dalesbred/pkg/utilx/jsonx"
	"github.com/globalbus/dalesbred/pkg/utilx/timex"
)

// Layouts attempted when a database returns temporal values as strings.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// registerBuiltins installs the default conversions: uuid, decimal, temporal
// and JSON columns. They go through the same registration path as user
// converters, so user registrations for the same key pairs shadow them.
//
// The to-database registrations for uuid and decimal keep argument binding
// portable across drivers that lack native codecs for them.
func registerBuiltins(r *Registry) {
	RegisterConversion(r, FromDatabase, func(s string) (uuid.UUID, error) {
		return uuid.Parse(s)
	})
	RegisterConversion(r, FromDatabase, func(b [16]byte) (uuid.UUID, error) {
		return uuid.UUID(b), nil
	})
	RegisterConversion(r, FromDatabase, func(u uuid.UUID) (string, error) {
		return u.String(), nil
	})
	RegisterConversion(r, ToDatabase, func(u uuid.UUID) (string, error) {
		return u.String(), nil
	})

	RegisterConversion(r, FromDatabase, func(s string) (decimal.Decimal, error) {
		return decimal.NewFromString(s)
	})
	RegisterConversion(r, FromDatabase, func(d decimal.Decimal) (string, error) {
		return d.String(), nil
	})
	RegisterConversion(r, FromDatabase, func(i int64) (decimal.Decimal, error) {
		return decimal.NewFromInt(i), nil
	})
	RegisterConversion(r, FromDatabase, func(f float64) (decimal.Decimal, error) {
		return decimal.NewFromFloat(f), nil
	})
	RegisterConversion(r, ToDatabase, func(d decimal.Decimal) (string, error) {
		return d.String(), nil
	})

	RegisterConversion(r, FromDatabase, func(s string) (time.Time, error) {
		return timex.ParseTimeWithMultipleLayouts(s, timeLayouts...)
	})
	RegisterConversion(r, FromDatabase, func(t time.Time) (string, error) {
		return t.Format(time.RFC3339Nano), nil
	})

	RegisterConversion(r, FromDatabase, func(b []byte) (map[string]any, error) {
		return jsonx.ParseJSON(b)
	})
	RegisterConversion(r, FromDatabase, func(m map[string]any) ([]byte, error) {
		return json.Marshal(m)
	})
}
