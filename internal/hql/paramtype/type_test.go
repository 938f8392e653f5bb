package paramtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Type
	}{
		{"int", Primitive{Base: Int}},
		{"  BIGINT ", Primitive{Base: Bigint}},
		{"Integer", Primitive{Base: Int}},
		{"bool", Primitive{Base: Boolean}},
		{"timestamp", Primitive{Base: Datetime}},
		{"decimal(10,2)", Primitive{Base: String}},
		{"unknown_thing", Primitive{Base: String}},
		{"array<int>", Array{Elem: Primitive{Base: Int}}},
		{"ARRAY < string >", Array{Elem: Primitive{Base: String}}},
		{"map<string,double>", Map{Key: Primitive{Base: String}, Value: Primitive{Base: Double}}},
		{"array<map<string,int>>", Array{Elem: Map{Key: Primitive{Base: String}, Value: Primitive{Base: Int}}}},
		{"struct<id:int, tags:array<string>>", Nested{Fields: []Field{
			{Name: "id", Type: Primitive{Base: Int}},
			{Name: "tags", Type: Array{Elem: Primitive{Base: String}}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "got %s", got)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{
		"",
		"   ",
		"array<int",
		"array<>",
		"map<string>",
		"struct<id>",
		"struct<id:int,id:int>",
		"int>",
		"array<int>>",
		"decimal(10",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidType)
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, input := range []string{
		"int",
		"array<bigint>",
		"map<string,array<double>>",
		"struct<a:int,b:struct<c:boolean>>",
	} {
		typ, err := Parse(input)
		require.NoError(t, err)
		assert.Equal(t, input, typ.String())

		again, err := Parse(typ.String())
		require.NoError(t, err)
		assert.True(t, Equal(typ, again))
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(MustParse("array<int>"), MustParse("list<integer>")))
	assert.False(t, Equal(MustParse("array<int>"), MustParse("array<bigint>")))
	assert.False(t, Equal(MustParse("struct<a:int>"), MustParse("struct<b:int>")))
	assert.False(t, Equal(MustParse("int"), nil))
	assert.True(t, Equal(nil, nil))
}

func TestCastTarget(t *testing.T) {
	tests := []struct {
		typ    string
		target string
		ok     bool
	}{
		{"int", "INT", true},
		{"bigint", "BIGINT", true},
		{"float", "FLOAT", true},
		{"double", "DOUBLE", true},
		{"boolean", "BOOLEAN", true},
		{"string", "", false},
		{"datetime", "", false},
		{"array<int>", "", false},
	}
	for _, tt := range tests {
		target, ok := CastTarget(MustParse(tt.typ))
		assert.Equal(t, tt.target, target, tt.typ)
		assert.Equal(t, tt.ok, ok, tt.typ)
		assert.Equal(t, tt.ok, NeedsCast(MustParse(tt.typ)), tt.typ)
	}
}

func TestParamExpr(t *testing.T) {
	e := ParamExpr(MustParse("int"), "e.params", "$.zoneId")
	assert.Equal(t, "CAST(get_json_object(e.params, '$.zoneId') AS INT)", e.SQL)
	assert.Equal(t, "get_json_object(e.params, '$.zoneId')", e.Raw)
	assert.False(t, e.Explodable)

	e = ParamExpr(MustParse("array<int>"), "e.params", "$.items")
	assert.Equal(t, "get_json_object(e.params, '$.items')", e.SQL)
	assert.True(t, e.Explodable)

	e = ParamExpr(nil, "params", "$.name")
	assert.Equal(t, "get_json_object(params, '$.name')", e.SQL)
}

func TestExplode(t *testing.T) {
	x, ok := Explode(MustParse("array<int>"), "get_json_object(e.params, '$.items')", "items")
	require.True(t, ok)
	assert.Contains(t, x.Clause, "LATERAL VIEW OUTER explode(split(")
	assert.Contains(t, x.Clause, "lv_items AS items_item")
	assert.Equal(t, "CAST(lv_items.items_item AS INT)", x.Select)

	x, ok = Explode(MustParse("map<string,string>"), "get_json_object(e.params, '$.attrs')", "attrs")
	require.True(t, ok)
	assert.Contains(t, x.Clause, "str_to_map(")
	assert.Contains(t, x.Clause, "lv_attrs AS attrs_key, attrs_value")
	assert.Equal(t, "lv_attrs.attrs_value", x.Select)

	_, ok = Explode(MustParse("int"), "x", "y")
	assert.False(t, ok)
}
