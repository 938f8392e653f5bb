package hql

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	raw := `{
		"mode": "Single",
		"events": [{"game_gid": 10000147, "event_id": 1}],
		"fields": [
			{"fieldName": "ds", "fieldType": "base"},
			{"fieldName": "zone_id", "fieldType": "PARAM", "jsonPath": "$.zoneId", "castType": "INT"}
		],
		"where_conditions": [{"field": "zone_id", "operator": " not   in ", "value": [1, 2.5]}],
		"options": {"sql_mode": "select", "include_comments": true}
	}`
	req, err := ParseRequest([]byte(raw), ParseOptions{})
	require.NoError(t, err)

	assert.Equal(t, ModeSingle, req.Mode)
	assert.Equal(t, FieldParam, req.Fields[1].FieldType)
	assert.Equal(t, "int", req.Fields[1].CastType)
	assert.Equal(t, "NOT IN", req.WhereConditions[0].Operator)
	assert.Equal(t, []any{json.Number("1"), json.Number("2.5")}, req.WhereConditions[0].Value)
	assert.Equal(t, SQLModeSelect, req.Options.SQLMode)
	assert.True(t, req.Options.IncludeComments)
	assert.True(t, req.Options.IncludePerformance)
	assert.Empty(t, req.Warnings)
}

func TestParseRequestLegacyKeys(t *testing.T) {
	raw := `{
		"mode": "single",
		"events": [{"game_gid": 10000147, "event_id": 1}],
		"fields": [{"field_name": "zone_id", "field_type": "param", "json_path": "$.zoneId"}],
		"whereConditions": [{"field": "role_id", "operator": "=", "value": 1, "logical_op": "and"}]
	}`

	req, err := ParseRequest([]byte(raw), ParseOptions{AllowLegacyFieldNames: true})
	require.NoError(t, err)
	assert.Equal(t, "zone_id", req.Fields[0].FieldName)
	assert.Equal(t, "$.zoneId", req.Fields[0].JSONPath)
	assert.Equal(t, "AND", req.WhereConditions[0].LogicalOp)
	assert.Equal(t, []string{
		`legacy key "field_name" is deprecated`,
		`legacy key "field_type" is deprecated`,
		`legacy key "json_path" is deprecated`,
		`legacy key "logical_op" is deprecated`,
	}, req.Warnings)

	_, err = ParseRequest([]byte(raw), ParseOptions{})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "fields[0].field_name", reqErr.FieldPath)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseRequestCurrentKeyWins(t *testing.T) {
	raw := `{"mode":"single","events":[{"game_gid":1,"event_id":1}],
		"fields":[{"fieldName":"a","field_name":"b","fieldType":"base"}]}`
	req, err := ParseRequest([]byte(raw), ParseOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a", req.Fields[0].FieldName)
	assert.Empty(t, req.Warnings)
}

func TestParseRequestInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		path string
	}{
		{"malformed", `{"mode":`, ""},
		{"missing mode", `{"events":[{"game_gid":1,"event_id":1}]}`, "mode"},
		{"unknown mode", `{"mode":"cross","events":[{"game_gid":1,"event_id":1}]}`, "mode"},
		{"no events", `{"mode":"single","events":[]}`, "events"},
		{"zero gid", `{"mode":"single","events":[{"game_gid":0,"event_id":1}]}`, "events[0].game_gid"},
		{"single with two events", `{"mode":"single","events":[{"game_gid":1,"event_id":1},{"game_gid":1,"event_id":2}]}`, "events"},
		{"join with one event", `{"mode":"join","events":[{"game_gid":1,"event_id":1}]}`, "events"},
		{"bad field type", `{"mode":"single","events":[{"game_gid":1,"event_id":1}],"fields":[{"fieldName":"a","fieldType":"json"}]}`, "fields[0].fieldType"},
		{"bad alias", `{"mode":"single","events":[{"game_gid":1,"event_id":1}],"fields":[{"fieldName":"a","fieldType":"base","alias":"a-b"}]}`, "fields[0].alias"},
		{"bad sql mode", `{"mode":"single","events":[{"game_gid":1,"event_id":1}],"options":{"sql_mode":"TABLE"}}`, "options.sql_mode"},
		{"bad view name", `{"mode":"single","events":[{"game_gid":1,"event_id":1}],"options":{"view_name_override":"a.b.c"}}`, "options.view_name_override"},
		{"bad logical op", `{"mode":"single","events":[{"game_gid":1,"event_id":1}],"where_conditions":[{"field":"a","operator":"=","logicalOp":"XOR"}]}`, "where_conditions[0].logicalOp"},
		{"bad where field", `{"mode":"single","events":[{"game_gid":1,"event_id":1}],"where_conditions":[{"field":"1=1 OR a","operator":"="}]}`, "where_conditions[0].field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.raw), ParseOptions{})
			var reqErr *RequestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, tt.path, reqErr.FieldPath)
			assert.NotEmpty(t, reqErr.Reason)
			assert.Equal(t, "InvalidRequest", ErrorKind(err))
		})
	}
}

func TestFingerprintStability(t *testing.T) {
	e := newTestEngine(t, newMemRepo())
	a := singleRequest(base("ds"), FieldRef{FieldName: "zone_id", FieldType: FieldParam})
	a.WhereConditions = []WhereCondition{{Field: "zone_id", Operator: "<>", Value: 1}}

	b := &Request{
		Mode:            " SINGLE ",
		Events:          []EventRef{{GameGID: testGID, EventID: 1}},
		Fields:          []FieldRef{{FieldName: "ds", FieldType: "Base"}, {FieldName: "zone_id ", FieldType: "param"}},
		WhereConditions: []WhereCondition{{Field: "zone_id", Operator: "!=", Value: 1, LogicalOp: "and"}},
		Options:         Options{SQLMode: "view", PartitionVar: "${bizdate}", JoinType: "LEFT"},
	}
	fa, err := e.Fingerprint(a)
	require.NoError(t, err)
	fb, err := e.Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	c := a.Clone()
	c.Fields = []FieldRef{c.Fields[1], c.Fields[0]}
	fc, err := e.Fingerprint(c)
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)

	// 同一请求的 JSON 形态与结构体形态指纹一致
	parsed, err := e.ParseRequest([]byte(`{"mode":"single","events":[{"game_gid":10000147,"event_id":1}],
		"fields":[{"fieldName":"ds","fieldType":"base"},{"fieldName":"zone_id","fieldType":"param"}],
		"where_conditions":[{"field":"zone_id","operator":"!=","value":1}],
		"options":{"include_performance":false}}`))
	require.NoError(t, err)
	fp, err := e.Fingerprint(parsed)
	require.NoError(t, err)
	assert.Equal(t, fa, fp)
}

func TestRequestClone(t *testing.T) {
	req := singleRequest(base("ds"))
	req.Warnings = []string{"w"}
	c := req.Clone()
	c.Fields[0].FieldName = "tm"
	c.Events[0].EventID = 2
	c.Warnings[0] = "x"
	assert.Equal(t, "ds", req.Fields[0].FieldName)
	assert.Equal(t, int64(1), req.Events[0].EventID)
	assert.Equal(t, "w", req.Warnings[0])
}

func TestNamingHelpers(t *testing.T) {
	g := Game{GID: testGID, OdsDB: "ieu_ods"}
	assert.Equal(t, srcTable, SourceTableName(g))
	assert.Equal(t, "ieu_cdm.v_dwd_10000147_role_login_di", TargetTableName(g, "role.login"))
	assert.Equal(t, "overseas_ods.v_dwd_200_pay_di", TargetTableName(Game{GID: 200, OdsDB: "overseas_ods"}, "pay"))
	assert.Equal(t, "ieu_cdm.v_dwd_10000147_a_b_union_c_di",
		compositeViewName(g, []*Event{{Name: "a.b"}, {Name: "c"}}, "union"))
}
