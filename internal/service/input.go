package service

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// FlexInt is an integer that also accepts a numeric JSON string such as "10".
// Fractions are truncated.
type FlexInt int64

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		return fmt.Errorf("expected a number, got %s", string(b))
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("expected a number, got %s", string(b))
	}
	whole := d.Truncate(0)
	if !whole.Equal(decimal.NewFromInt(whole.IntPart())) {
		return fmt.Errorf("number %s is out of range", s)
	}
	*n = FlexInt(whole.IntPart())
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// assignID returns one past both the highest current id and the highest id
// ever assigned in collection, so ids of deleted records are never handed out again.
func assignID[T any](tx *store.Tx, collection string, items []T, id func(T) int64) (int64, error) {
	seq, err := tx.Sequences()
	if err != nil {
		return 0, err
	}

	next := seq[collection]
	for _, item := range items {
		if v := id(item); v > next {
			next = v
		}
	}
	next++

	seq[collection] = next
	tx.SetSequences(seq)
	return next, nil
}
