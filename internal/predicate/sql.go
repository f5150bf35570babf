package predicate

import (
	"fmt"
	"reflect"

	sq "github.com/Masterminds/squirrel"
)

// Columns maps public field names to SQL column expressions.
type Columns map[string]string

// Sqlizer compiles the expression into a squirrel condition. Fields are resolved
// through the allow-list; the empty predicate compiles to nil.
func (e Expr) Sqlizer(columns Columns) (sq.Sqlizer, error) {
	if e.IsEmpty() {
		return nil, nil
	}
	switch e.Kind {
	case KindTerm:
		col, ok := columns[e.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, e.Field)
		}
		return termSqlizer(col, e.Op, e.Value)
	case KindAnd, KindOr:
		parts := make([]sq.Sqlizer, 0, len(e.Args))
		for _, arg := range e.Args {
			part, err := arg.Sqlizer(columns)
			if err != nil {
				return nil, err
			}
			if part != nil {
				parts = append(parts, part)
			}
		}
		if e.Kind == KindAnd {
			return sq.And(parts), nil
		}
		return sq.Or(parts), nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrInvalidExpr, e.Kind)
}

func termSqlizer(col string, op Op, value any) (sq.Sqlizer, error) {
	switch op {
	case OpEq:
		return sq.Eq{col: value}, nil
	case OpNe:
		return sq.NotEq{col: value}, nil
	case OpIn:
		if value == nil || !isList(value) {
			return nil, fmt.Errorf("%w: %s in expects a list", ErrInvalidExpr, col)
		}
		return sq.Eq{col: value}, nil
	case OpGte:
		return sq.GtOrEq{col: value}, nil
	case OpLte:
		return sq.LtOrEq{col: value}, nil
	case OpILike:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s ilike expects a string", ErrInvalidExpr, col)
		}
		return sq.ILike{col: "%" + s + "%"}, nil
	}
	return nil, fmt.Errorf("%w: operator %q", ErrInvalidExpr, op)
}

func isList(v any) bool {
	kind := reflect.TypeOf(v).Kind()
	return kind == reflect.Slice || kind == reflect.Array
}
