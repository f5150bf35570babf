// Package predicate models the structured filter expressions used to scope
// list views: field/operator/value terms combined with and/or connectives.
package predicate

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind distinguishes leaf terms from connectives.
type Kind string

const (
	KindTerm Kind = "term"
	KindAnd  Kind = "and"
	KindOr   Kind = "or"
)

// Op is a comparison operator of a term.
type Op string

const (
	OpEq    Op = "="
	OpNe    Op = "!="
	OpIn    Op = "in"
	OpGte   Op = ">="
	OpLte   Op = "<="
	OpILike Op = "ilike"
)

var (
	// ErrUnknownField is returned when a term references a field outside the allow-list.
	ErrUnknownField = errors.New("predicate: unknown field")
	// ErrInvalidExpr is returned for malformed expressions.
	ErrInvalidExpr = errors.New("predicate: invalid expression")
)

// Expr is a node of a predicate tree. The zero value is the empty predicate,
// meaning "no constraint".
type Expr struct {
	Kind  Kind   `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
	Op    Op     `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`
	Args  []Expr `json:"args,omitempty"`
}

func term(field string, op Op, value any) Expr {
	return Expr{Kind: KindTerm, Field: field, Op: op, Value: value}
}

// Eq builds field = value.
func Eq(field string, value any) Expr { return term(field, OpEq, value) }

// Ne builds field != value.
func Ne(field string, value any) Expr { return term(field, OpNe, value) }

// In builds field in values.
func In(field string, values any) Expr { return term(field, OpIn, values) }

// Gte builds field >= value.
func Gte(field string, value any) Expr { return term(field, OpGte, value) }

// Lte builds field <= value.
func Lte(field string, value any) Expr { return term(field, OpLte, value) }

// ILike builds a case-insensitive substring match.
func ILike(field string, pattern string) Expr { return term(field, OpILike, pattern) }

// And conjoins the arguments. Empty arguments are dropped and nested
// conjunctions are flattened; a single remaining argument is returned as is.
func And(args ...Expr) Expr { return join(KindAnd, args) }

// Or disjoins the arguments with the same normalisation rules as And.
func Or(args ...Expr) Expr { return join(KindOr, args) }

func join(kind Kind, args []Expr) Expr {
	flat := make([]Expr, 0, len(args))
	for _, arg := range args {
		if arg.IsEmpty() {
			continue
		}
		if arg.Kind == kind {
			flat = append(flat, arg.Args...)
			continue
		}
		flat = append(flat, arg)
	}
	switch len(flat) {
	case 0:
		return Expr{}
	case 1:
		return flat[0]
	}
	return Expr{Kind: kind, Args: flat}
}

// IsEmpty reports whether the expression places no constraint.
func (e Expr) IsEmpty() bool {
	switch e.Kind {
	case "":
		return true
	case KindAnd, KindOr:
		for _, arg := range e.Args {
			if !arg.IsEmpty() {
				return false
			}
		}
		return true
	}
	return false
}

// Terms returns every leaf term in depth-first order.
func (e Expr) Terms() []Expr {
	var out []Expr
	e.walk(func(t Expr) { out = append(out, t) })
	return out
}

func (e Expr) walk(fn func(Expr)) {
	switch e.Kind {
	case KindTerm:
		fn(e)
	case KindAnd, KindOr:
		for _, arg := range e.Args {
			arg.walk(fn)
		}
	}
}

// Validate checks structural well-formedness.
func (e Expr) Validate() error {
	switch e.Kind {
	case "":
		return nil
	case KindTerm:
		if e.Field == "" {
			return fmt.Errorf("%w: term without field", ErrInvalidExpr)
		}
		switch e.Op {
		case OpEq, OpNe, OpIn, OpGte, OpLte, OpILike:
		default:
			return fmt.Errorf("%w: operator %q", ErrInvalidExpr, e.Op)
		}
		return nil
	case KindAnd, KindOr:
		for _, arg := range e.Args {
			if err := arg.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: kind %q", ErrInvalidExpr, e.Kind)
}

// Domain renders the expression in prefix notation: connectives precede their
// operands and terms become [field, op, value] triples. An implicit top-level
// conjunction is emitted as a flat list.
func (e Expr) Domain() []any {
	if e.IsEmpty() {
		return []any{}
	}
	if e.Kind == KindAnd {
		out := make([]any, 0, len(e.Args))
		for _, arg := range e.Args {
			out = append(out, arg.prefix()...)
		}
		return out
	}
	return e.prefix()
}

func (e Expr) prefix() []any {
	switch e.Kind {
	case KindTerm:
		return []any{[]any{e.Field, string(e.Op), e.Value}}
	case KindAnd, KindOr:
		marker := "&"
		if e.Kind == KindOr {
			marker = "|"
		}
		var out []any
		for i := 0; i < len(e.Args)-1; i++ {
			out = append(out, marker)
		}
		for _, arg := range e.Args {
			out = append(out, arg.prefix()...)
		}
		return out
	}
	return nil
}

// Parse decodes a JSON encoded expression. An empty input yields the empty predicate.
func Parse(raw string) (Expr, error) {
	if raw == "" {
		return Expr{}, nil
	}
	var e Expr
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Expr{}, fmt.Errorf("%w: %v", ErrInvalidExpr, err)
	}
	if err := e.Validate(); err != nil {
		return Expr{}, err
	}
	return e, nil
}

// String returns the JSON encoding of the expression.
func (e Expr) String() string {
	raw, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(raw)
}
