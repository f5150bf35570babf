package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testColumns = Columns{
	"state":       "a.state",
	"condition":   "a.condition",
	"asset_type":  "a.asset_type",
	"name":        "a.name",
	"category_id": "a.category_id",
}

func TestAndFlattensAndDropsEmpty(t *testing.T) {
	expr := And(Expr{}, Eq("asset_type", "it"), And(Eq("state", "available"), Expr{}))
	require.Equal(t, KindAnd, expr.Kind)
	require.Len(t, expr.Args, 2)
	assert.Equal(t, "asset_type", expr.Args[0].Field)
	assert.Equal(t, "state", expr.Args[1].Field)

	single := And(Expr{}, Eq("state", "retired"))
	assert.Equal(t, KindTerm, single.Kind)

	assert.True(t, And().IsEmpty())
	assert.True(t, Or(Expr{}, Expr{}).IsEmpty())
}

func TestTermsDepthFirst(t *testing.T) {
	expr := And(Eq("asset_type", "it"), Or(Eq("condition", "broken"), Eq("state", "retired")))
	terms := expr.Terms()
	require.Len(t, terms, 3)
	assert.Equal(t, []string{"asset_type", "condition", "state"}, []string{terms[0].Field, terms[1].Field, terms[2].Field})
}

func TestDomainPrefixNotation(t *testing.T) {
	expr := And(Eq("asset_type", "it"), Or(Eq("condition", "broken"), Eq("state", "retired")))
	domain := expr.Domain()
	require.Len(t, domain, 4)
	assert.Equal(t, []any{"asset_type", "=", "it"}, domain[0])
	assert.Equal(t, "|", domain[1])
	assert.Equal(t, []any{"condition", "=", "broken"}, domain[2])
	assert.Equal(t, []any{"state", "=", "retired"}, domain[3])

	assert.Empty(t, Expr{}.Domain())
}

func TestSqlizer(t *testing.T) {
	expr := And(Eq("asset_type", "it"), Or(Eq("condition", "broken"), Eq("state", "retired")))
	cond, err := expr.Sqlizer(testColumns)
	require.NoError(t, err)
	sql, args, err := cond.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "(a.asset_type = ? AND (a.condition = ? OR a.state = ?))", sql)
	assert.Equal(t, []any{"it", "broken", "retired"}, args)
}

func TestSqlizerIn(t *testing.T) {
	cond, err := In("category_id", []int64{3, 5}).Sqlizer(testColumns)
	require.NoError(t, err)
	sql, args, err := cond.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "a.category_id IN (?,?)", sql)
	assert.Equal(t, []any{int64(3), int64(5)}, args)

	_, err = In("category_id", 3).Sqlizer(testColumns)
	require.ErrorIs(t, err, ErrInvalidExpr)
}

func TestSqlizerUnknownField(t *testing.T) {
	_, err := Eq("password", "x").Sqlizer(testColumns)
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestSqlizerEmpty(t *testing.T) {
	cond, err := Expr{}.Sqlizer(testColumns)
	require.NoError(t, err)
	assert.Nil(t, cond)
}

func TestParseRoundTrip(t *testing.T) {
	expr := And(Eq("asset_type", "operation"), ILike("name", "printer"))
	parsed, err := Parse(expr.String())
	require.NoError(t, err)
	assert.Equal(t, expr.Domain(), parsed.Domain())

	_, err = Parse(`{"kind":"term","field":"state","op":"~"}`)
	require.ErrorIs(t, err, ErrInvalidExpr)

	empty, err := Parse("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}
