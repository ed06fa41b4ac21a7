package query

import (
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/huandu/go-sqlbuilder"

	"climate-records/internal/models"
	"climate-records/internal/validation"
)

// Paging defaults and bounds.
const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// Period types accepted by PeriodSelector.
const (
	PeriodSpecificYear = "specific-year"
	PeriodLastMYears   = "last-m-years"
)

// Sort directions.
const (
	Asc  = "ASC"
	Desc = "DESC"
)

func init() {
	validation.RegisterStructValidation(periodSelectorRules, PeriodSelector{})
	validation.RegisterStructValidation(orderRules, Order{})
}

// Paging skips Offset rows and takes Limit rows.
type Paging struct {
	Limit  int `param:"limit" validate:"min=1,max=100"`
	Offset int `param:"offset" validate:"min=0"`
}

// NewPaging returns a full first page.
func NewPaging() *Paging {
	return &Paging{Limit: DefaultLimit}
}

func (pg *Paging) Bind(p Params) error {
	if v, ok, err := intParam(p, "limit"); err != nil {
		return err
	} else if ok {
		pg.Limit = v
	}
	if v, ok, err := intParam(p, "offset"); err != nil {
		return err
	} else if ok {
		pg.Offset = v
	}
	return nil
}

func (pg *Paging) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	limit := pg.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	offset := pg.Offset
	if offset < 0 {
		offset = 0
	}
	return sb.Limit(clamp(limit, 1, MaxLimit)).Offset(offset)
}

// YearFilter keeps rows from Year onward. Absent year applies nothing.
type YearFilter struct {
	table Table
	Year  *int `param:"year" validate:"omitempty,min=1900,max=1999"`
}

func NewYearFilter(t Table) *YearFilter {
	return &YearFilter{table: t}
}

func (f *YearFilter) Bind(p Params) error {
	v, ok, err := intParam(p, "year")
	if err != nil {
		return err
	}
	if ok {
		f.Year = &v
	}
	return nil
}

func (f *YearFilter) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	if f.Year != nil {
		sb.Where(sb.GreaterEqualThan(f.table.Col("year"), *f.Year))
	}
	return sb
}

// YearSelector matches one exact year. Used when the year identifies the resource.
type YearSelector struct {
	table Table
	Year  int `param:"year" validate:"required,min=1900,max=1999"`
}

func NewYearSelector(t Table) *YearSelector {
	return &YearSelector{table: t}
}

func (s *YearSelector) Bind(p Params) error {
	v, _, err := intParam(p, "year")
	if err != nil {
		return err
	}
	s.Year = v
	return nil
}

func (s *YearSelector) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	sb.Where(sb.Equal(s.table.Col("year"), s.Year))
	return sb
}

// CountrySelector matches a canonical country name, or every country whose ISO code
// equals the value when the value looks like an ISO code.
type CountrySelector struct {
	table   Table
	Country string `param:"country" validate:"required"`
}

func NewCountrySelector(t Table) *CountrySelector {
	return &CountrySelector{table: t}
}

func (s *CountrySelector) Bind(p Params) error {
	s.Country = strings.TrimSpace(p.Get("country"))
	return nil
}

// IsISO reports whether the selector resolves through the country table.
func (s *CountrySelector) IsISO() bool {
	return IsISOCode(s.Country)
}

func (s *CountrySelector) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	if s.IsISO() {
		sub := sqlbuilder.NewSelectBuilder()
		sub.Select("c.country").From("country c").Where(sub.Equal("c.iso_code", s.Country))
		sb.Where(sb.In(s.table.Col("country"), sub))
		return sb
	}
	sb.Where(sb.Equal(s.table.Col("country"), s.Country))
	return sb
}

// ContinentSelector matches temperature rows keyed by a continent name.
type ContinentSelector struct {
	table     Table
	Continent string `param:"continent" validate:"required,continent"`
}

func NewContinentSelector(t Table) *ContinentSelector {
	return &ContinentSelector{table: t}
}

func (s *ContinentSelector) Bind(p Params) error {
	s.Continent = strings.TrimSpace(p.Get("continent"))
	return nil
}

func (s *ContinentSelector) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	sb.Where(sb.Equal(s.table.Col("country"), s.Continent))
	return sb
}

// PeriodSelector picks either one specific year or the last m years of the dataset era.
type PeriodSelector struct {
	table       Table
	PeriodType  string `param:"period_type" validate:"required,oneof=specific-year last-m-years"`
	PeriodValue int    `param:"period_value"`
}

func NewPeriodSelector(t Table) *PeriodSelector {
	return &PeriodSelector{table: t}
}

func (s *PeriodSelector) Bind(p Params) error {
	s.PeriodType = strings.TrimSpace(p.Get("period_type"))
	v, _, err := intParam(p, "period_value")
	if err != nil {
		return err
	}
	s.PeriodValue = v
	return nil
}

// FromYear is the exclusive lower bound used in last-m-years mode.
func (s *PeriodSelector) FromYear() int {
	return models.LastYear - s.PeriodValue
}

func (s *PeriodSelector) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	switch s.PeriodType {
	case PeriodSpecificYear:
		sb.Where(sb.Equal(s.table.Col("year"), s.PeriodValue))
	case PeriodLastMYears:
		sb.Where(sb.GreaterThan(s.table.Col("year"), s.FromYear()))
	}
	return sb
}

// periodSelectorRules bounds period_value according to the selected period_type.
func periodSelectorRules(sl validator.StructLevel) {
	s := sl.Current().Interface().(PeriodSelector)
	switch s.PeriodType {
	case PeriodSpecificYear:
		if s.PeriodValue < models.FirstYear {
			sl.ReportError(s.PeriodValue, "period_value", "PeriodValue", "min", "1900")
		} else if s.PeriodValue > models.LastYear {
			sl.ReportError(s.PeriodValue, "period_value", "PeriodValue", "max", "1999")
		}
	case PeriodLastMYears:
		if s.PeriodValue < 1 {
			sl.ReportError(s.PeriodValue, "period_value", "PeriodValue", "min", "1")
		}
	}
}

// Batcher takes batch number BatchIndex (1-based) of BatchSize rows.
type Batcher struct {
	BatchSize  int `param:"batch_size" validate:"required,oneof=10 20 50 100"`
	BatchIndex int `param:"batch_index" validate:"required,min=1"`
}

func NewBatcher() *Batcher {
	return &Batcher{}
}

func (b *Batcher) Bind(p Params) error {
	size, _, err := intParam(p, "batch_size")
	if err != nil {
		return err
	}
	index, _, err := intParam(p, "batch_index")
	if err != nil {
		return err
	}
	b.BatchSize, b.BatchIndex = size, index
	return nil
}

// Offset is the number of rows skipped before the batch.
func (b *Batcher) Offset() int {
	return (b.BatchIndex - 1) * b.BatchSize
}

func (b *Batcher) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	return sb.Limit(b.BatchSize).Offset(b.Offset())
}

// EnergyPopulationOrder sorts energy rows by the population of the matching general
// record, looked up with a correlated scalar subquery so rows without population are kept.
type EnergyPopulationOrder struct {
	OrderDir string `param:"order_dir" validate:"required,oneof=ASC DESC"`
}

func NewEnergyPopulationOrder() *EnergyPopulationOrder {
	return &EnergyPopulationOrder{}
}

func (o *EnergyPopulationOrder) Bind(p Params) error {
	o.OrderDir = strings.TrimSpace(p.Get("order_dir"))
	return nil
}

// PopulationSubquery is the correlated lookup used as the sort key.
func PopulationSubquery() string {
	sub := sqlbuilder.NewSelectBuilder()
	sub.Select("gr.population").
		From("general_record gr").
		Where(
			"gr.country = "+EnergyTable.Col("country"),
			"gr.year = "+EnergyTable.Col("year"),
		)
	sql, _ := sub.Build()
	return "(" + sql + ")"
}

func (o *EnergyPopulationOrder) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	return sb.OrderBy(PopulationSubquery()+" "+o.OrderDir, EnergyTable.Col("country")+" "+Asc)
}

// Order sorts by one of a fixed set of columns. With an empty OrderBy it applies nothing,
// unless the order was created with a fixed column.
type Order struct {
	columns  map[string]string
	OrderBy  string `param:"order_by"`
	OrderDir string `param:"order_dir" validate:"omitempty,oneof=ASC DESC"`
	fixed    bool
	then     []string
}

// NewOrder allows sorting by the given columns of t, selected by their bare names.
func NewOrder(t Table, columns ...string) *Order {
	o := &Order{columns: make(map[string]string, len(columns))}
	for _, c := range columns {
		o.columns[c] = t.Col(c)
	}
	return o
}

// NewFixedOrder always sorts by expr; only the direction is read from the request.
// Ties are broken by the then expressions, which carry their own direction.
func NewFixedOrder(expr string, then ...string) *Order {
	return &Order{columns: map[string]string{expr: expr}, OrderBy: expr, fixed: true, then: then}
}

func (o *Order) Bind(p Params) error {
	if !o.fixed {
		o.OrderBy = strings.TrimSpace(p.Get("order_by"))
	}
	o.OrderDir = strings.TrimSpace(p.Get("order_dir"))
	return nil
}

// Direction is DESC only when DESC was requested.
func (o *Order) Direction() string {
	if o.OrderDir == Desc {
		return Desc
	}
	return Asc
}

func (o *Order) Apply(sb *sqlbuilder.SelectBuilder) *sqlbuilder.SelectBuilder {
	expr, ok := o.columns[o.OrderBy]
	if !ok {
		return sb
	}
	return sb.OrderBy(append([]string{expr + " " + o.Direction()}, o.then...)...)
}

func orderRules(sl validator.StructLevel) {
	o := sl.Current().Interface().(Order)
	if o.OrderBy == "" {
		return
	}
	if _, ok := o.columns[o.OrderBy]; !ok {
		allowed := make([]string, 0, len(o.columns))
		for c := range o.columns {
			allowed = append(allowed, c)
		}
		sort.Strings(allowed)
		sl.ReportError(o.OrderBy, "order_by", "OrderBy", "oneof", strings.Join(allowed, " "))
	}
}

// NumberSelector keeps the first NumCountries entries of an aggregated list.
type NumberSelector struct {
	NumCountries int `param:"num_countries" validate:"required,min=1"`
}

func NewNumberSelector() *NumberSelector {
	return &NumberSelector{}
}

func (n *NumberSelector) Bind(p Params) error {
	v, _, err := intParam(p, "num_countries")
	if err != nil {
		return err
	}
	n.NumCountries = v
	return nil
}
