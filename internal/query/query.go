// Package query holds the predicate primitives that turn request parameters into
// parameterized SQL. Each primitive is bound to one table alias, validated on its own,
// and applied to a go-sqlbuilder SelectBuilder. Primitives compose left to right:
// identity selectors, then filters, then ordering, then batching or paging.
package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/huandu/go-sqlbuilder"

	"climate-records/internal/models"
	"climate-records/internal/validation"
)

// Table names a fact or reference table. Its name doubles as the alias used in predicates.
type Table string

const (
	GeneralTable     Table = "general_record"
	EmissionTable    Table = "emission_record"
	EnergyTable      Table = "energy_record"
	TemperatureTable Table = "temperature_record"
	CountryTable     Table = "country"
	ContinentTable   Table = "continent"
)

// Col qualifies a column with the table alias.
func (t Table) Col(column string) string {
	return string(t) + "." + column
}

// Params is the raw request input a primitive binds from: query string, path variables,
// or values derived from a request body.
type Params interface {
	Get(key string) string
}

// Values is a Params backed by a plain map. url.Values also satisfies Params.
type Values map[string]string

func (v Values) Get(key string) string {
	return v[key]
}

// Helper applies one query-shaping concern to a select builder and returns it.
type Helper interface {
	Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder
}

// Binder reads a primitive's fields from request input. Type errors are reported as
// models.ValidationErrors; range and enum checks happen in the gate.
type Binder interface {
	Bind(p Params) error
}

// Primitive is a helper that binds itself from request input.
type Primitive interface {
	Binder
	Helper
}

// Bind is the validation gate. Each target is bound and validated in order and the first
// failure is returned, so no primitive is ever applied with unvalidated input.
func Bind(p Params, targets ...Binder) error {
	for _, t := range targets {
		if err := t.Bind(p); err != nil {
			return err
		}
		if err := validation.ValidateStruct(t); err != nil {
			return err
		}
	}
	return nil
}

// Compose runs primitives through the gate and returns them as helpers, ready to be applied
// in the order given.
func Compose(p Params, primitives ...Primitive) ([]Helper, error) {
	helpers := make([]Helper, 0, len(primitives))
	for _, pr := range primitives {
		if err := Bind(p, pr); err != nil {
			return nil, err
		}
		helpers = append(helpers, pr)
	}
	return helpers, nil
}

var isoCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// IsISOCode reports whether a country value is to be resolved as an ISO 3166-1 alpha-3 code.
func IsISOCode(s string) bool {
	return isoCodePattern.MatchString(s)
}

// Truncate keeps the first n items of an already ordered list.
func Truncate[T any](sel *NumberSelector, items []T) []T {
	if sel == nil || sel.NumCountries <= 0 || sel.NumCountries >= len(items) {
		return items
	}
	return items[:sel.NumCountries]
}

// intParam returns (value, present, error). Empty strings count as absent.
func intParam(p Params, key string) (int, bool, error) {
	raw := strings.TrimSpace(p.Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, models.ValidationErrors{{
			Field:   key,
			Value:   raw,
			Message: key + " must be an integer",
		}}
	}
	return v, true, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
