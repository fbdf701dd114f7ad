package crm

// Op is a predicate operator.
type Op string

const (
	OpEq      Op = "eq"
	OpIn      Op = "in"
	OpGte     Op = "gte"
	OpLte     Op = "lte"
	OpLike    Op = "like" // case-insensitive substring
	OpIsNull  Op = "is_null"
	OpNotNull Op = "not_null"
)

// Predicate is one tagged condition on a column. Column names always come
// from code, never from request input.
type Predicate struct {
	Column string
	Op     Op
	Value  any
	Values []any
}

func Eq(column string, v any) Predicate      { return Predicate{Column: column, Op: OpEq, Value: v} }
func Gte(column string, v any) Predicate     { return Predicate{Column: column, Op: OpGte, Value: v} }
func Lte(column string, v any) Predicate     { return Predicate{Column: column, Op: OpLte, Value: v} }
func Like(column string, s string) Predicate { return Predicate{Column: column, Op: OpLike, Value: s} }
func IsNull(column string) Predicate         { return Predicate{Column: column, Op: OpIsNull} }
func NotNull(column string) Predicate        { return Predicate{Column: column, Op: OpNotNull} }

func In(column string, vs ...any) Predicate {
	return Predicate{Column: column, Op: OpIn, Values: vs}
}

// Filter is an AND-list of predicates plus paging, built once per request
// and handed to the query layer.
type Filter struct {
	Predicates []Predicate
	Limit      int
	Offset     int
}

// Where returns a copy of f with preds appended.
func (f Filter) Where(preds ...Predicate) Filter {
	out := Filter{Limit: f.Limit, Offset: f.Offset}
	out.Predicates = make([]Predicate, 0, len(f.Predicates)+len(preds))
	out.Predicates = append(out.Predicates, f.Predicates...)
	out.Predicates = append(out.Predicates, preds...)
	return out
}

// Page returns a copy of f with paging set. Non-positive limit means no limit.
func (f Filter) Page(limit, offset int) Filter {
	out := f.Where()
	out.Limit = limit
	if offset > 0 {
		out.Offset = offset
	}
	return out
}

// Has reports whether a predicate on column is present.
func (f Filter) Has(column string) bool {
	for _, p := range f.Predicates {
		if p.Column == column {
			return true
		}
	}
	return false
}
