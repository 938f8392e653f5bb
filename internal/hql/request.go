package hql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// 组合模式
const (
	ModeSingle = "single"
	ModeJoin   = "join"
	ModeUnion  = "union"
)

// 输出形式
const (
	SQLModeView   = "VIEW"
	SQLModeSelect = "SELECT"
)

// join 类型
const (
	JoinInner = "INNER"
	JoinLeft  = "LEFT"
	JoinRight = "RIGHT"
	JoinFull  = "FULL"
)

// FieldType 字段来源
type FieldType string

const (
	FieldBase  FieldType = "base"
	FieldParam FieldType = "param"
	FieldCalc  FieldType = "calc"
)

// Request 生成请求（规范化后的形态，指纹基于它计算）
type Request struct {
	Mode            string           `json:"mode" validate:"required,oneof=single join union"`
	Events          []EventRef       `json:"events" validate:"required,min=1,dive"`
	Fields          []FieldRef       `json:"fields" validate:"dive"`
	WhereConditions []WhereCondition `json:"where_conditions" validate:"dive"`
	Options         Options          `json:"options"`

	// Warnings 解析阶段产生的提示（如使用了旧字段名），不参与指纹
	Warnings []string `json:"-"`
}

// EventRef 请求中引用的事件
type EventRef struct {
	GameGID int64 `json:"game_gid" validate:"required,gt=0"`
	EventID int64 `json:"event_id" validate:"required,gt=0"`
}

// FieldRef 请求输出的一个字段
type FieldRef struct {
	FieldName string    `json:"fieldName" validate:"required"`
	FieldType FieldType `json:"fieldType" validate:"required,oneof=base param calc"`
	JSONPath  string    `json:"jsonPath,omitempty"`
	Alias     string    `json:"alias,omitempty" validate:"omitempty,identifier"`
	CastType  string    `json:"castType,omitempty"`
	EventID   int64     `json:"eventId,omitempty" validate:"gte=0"`
	Comment   string    `json:"comment,omitempty"`
	Explode   bool      `json:"explode,omitempty"`
}

// WhereCondition 过滤条件
type WhereCondition struct {
	Field     string `json:"field" validate:"required"`
	Operator  string `json:"operator" validate:"required"`
	Value     any    `json:"value"`
	LogicalOp string `json:"logicalOp,omitempty" validate:"omitempty,oneof=AND OR"`
}

// Options 生成选项
type Options struct {
	SQLMode            string `json:"sql_mode" validate:"omitempty,oneof=VIEW SELECT"`
	IncludeComments    bool   `json:"include_comments"`
	IncludePerformance bool   `json:"include_performance"`
	JoinType           string `json:"join_type,omitempty" validate:"omitempty,oneof=INNER LEFT RIGHT FULL"`
	JoinKey            string `json:"join_key,omitempty" validate:"omitempty,identifier"`
	PartitionVar       string `json:"partition_var,omitempty"`
	ViewNameOverride   string `json:"view_name_override,omitempty" validate:"omitempty,tablename"`
}

// ParseOptions 解析选项
type ParseOptions struct {
	AllowLegacyFieldNames bool
}

// 以下为线上格式，同时兼容 camelCase 与旧的 snake_case 键名
type wireRequest struct {
	Mode                  string          `json:"mode"`
	Events                []EventRef      `json:"events"`
	Fields                []wireField     `json:"fields"`
	WhereConditions       []wireCondition `json:"where_conditions"`
	LegacyWhereConditions []wireCondition `json:"whereConditions"`
	Options               wireOptions     `json:"options"`
}

type wireField struct {
	FieldName       *string `json:"fieldName"`
	FieldType       *string `json:"fieldType"`
	JSONPath        *string `json:"jsonPath"`
	Alias           *string `json:"alias"`
	CastType        *string `json:"castType"`
	EventID         *int64  `json:"eventId"`
	Comment         *string `json:"comment"`
	Explode         *bool   `json:"explode"`
	LegacyFieldName *string `json:"field_name"`
	LegacyFieldType *string `json:"field_type"`
	LegacyJSONPath  *string `json:"json_path"`
	LegacyCastType  *string `json:"cast_type"`
	LegacyEventID   *int64  `json:"event_id"`
}

type wireCondition struct {
	Field           string  `json:"field"`
	Operator        string  `json:"operator"`
	Value           any     `json:"value"`
	LogicalOp       *string `json:"logicalOp"`
	LegacyLogicalOp *string `json:"logical_op"`
}

type wireOptions struct {
	SQLMode            string `json:"sql_mode"`
	IncludeComments    *bool  `json:"include_comments"`
	IncludePerformance *bool  `json:"include_performance"`
	JoinType           string `json:"join_type"`
	JoinKey            string `json:"join_key"`
	PartitionVar       string `json:"partition_var"`
	ViewNameOverride   string `json:"view_name_override"`
}

// ParseRequest 解析 JSON 请求体：兼容新旧键名，数值保留为 json.Number，
// 并完成规范化与结构校验。旧键名在允许时记入 Request.Warnings。
func ParseRequest(raw []byte, opts ParseOptions) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var w wireRequest
	if err := dec.Decode(&w); err != nil {
		return nil, invalidRequest("", "malformed json: %v", err)
	}

	req := &Request{
		Mode:   w.Mode,
		Events: w.Events,
		Options: Options{
			SQLMode:            w.Options.SQLMode,
			IncludeComments:    derefBool(w.Options.IncludeComments, false),
			IncludePerformance: derefBool(w.Options.IncludePerformance, true),
			JoinType:           w.Options.JoinType,
			JoinKey:            w.Options.JoinKey,
			PartitionVar:       w.Options.PartitionVar,
			ViewNameOverride:   w.Options.ViewNameOverride,
		},
	}

	legacy := map[string]struct{}{}
	useLegacy := func(path, key string) error {
		if !opts.AllowLegacyFieldNames {
			return invalidRequest(path, "legacy key %q is not accepted", key)
		}
		legacy[key] = struct{}{}
		return nil
	}

	for i, f := range w.Fields {
		path := fmt.Sprintf("fields[%d]", i)
		ref := FieldRef{
			Alias:   deref(f.Alias),
			Comment: deref(f.Comment),
			Explode: derefBool(f.Explode, false),
		}
		pairs := []struct {
			current, legacy *string
			key             string
			dst             *string
		}{
			{f.FieldName, f.LegacyFieldName, "field_name", &ref.FieldName},
			{f.JSONPath, f.LegacyJSONPath, "json_path", &ref.JSONPath},
			{f.CastType, f.LegacyCastType, "cast_type", &ref.CastType},
		}
		for _, p := range pairs {
			switch {
			case p.current != nil:
				*p.dst = *p.current
			case p.legacy != nil:
				if err := useLegacy(path+"."+p.key, p.key); err != nil {
					return nil, err
				}
				*p.dst = *p.legacy
			}
		}
		switch {
		case f.FieldType != nil:
			ref.FieldType = FieldType(*f.FieldType)
		case f.LegacyFieldType != nil:
			if err := useLegacy(path+".field_type", "field_type"); err != nil {
				return nil, err
			}
			ref.FieldType = FieldType(*f.LegacyFieldType)
		}
		switch {
		case f.EventID != nil:
			ref.EventID = *f.EventID
		case f.LegacyEventID != nil:
			if err := useLegacy(path+".event_id", "event_id"); err != nil {
				return nil, err
			}
			ref.EventID = *f.LegacyEventID
		}
		req.Fields = append(req.Fields, ref)
	}

	conds := w.WhereConditions
	if len(conds) == 0 && len(w.LegacyWhereConditions) > 0 {
		conds = w.LegacyWhereConditions
	}
	for i, c := range conds {
		cond := WhereCondition{Field: c.Field, Operator: c.Operator, Value: c.Value}
		switch {
		case c.LogicalOp != nil:
			cond.LogicalOp = *c.LogicalOp
		case c.LegacyLogicalOp != nil:
			if err := useLegacy(fmt.Sprintf("where_conditions[%d].logical_op", i), "logical_op"); err != nil {
				return nil, err
			}
			cond.LogicalOp = *c.LegacyLogicalOp
		}
		req.WhereConditions = append(req.WhereConditions, cond)
	}

	for _, key := range []string{"field_name", "field_type", "json_path", "cast_type", "event_id", "logical_op"} {
		if _, ok := legacy[key]; ok {
			req.Warnings = append(req.Warnings, fmt.Sprintf("legacy key %q is deprecated", key))
		}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

var (
	operatorSpaces = regexp.MustCompile(`\s+`)
	identifierRe   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	qualifiedRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+$`)
)

// normalize 统一大小写与空白，不填充默认值（默认值依赖引擎配置，见 applyDefaults）
func (r *Request) normalize() {
	r.Mode = strings.ToLower(strings.TrimSpace(r.Mode))
	for i := range r.Fields {
		f := &r.Fields[i]
		f.FieldName = strings.TrimSpace(f.FieldName)
		f.FieldType = FieldType(strings.ToLower(strings.TrimSpace(string(f.FieldType))))
		f.JSONPath = strings.TrimSpace(f.JSONPath)
		f.Alias = strings.TrimSpace(f.Alias)
		f.CastType = strings.ToLower(strings.TrimSpace(f.CastType))
		f.Comment = strings.TrimSpace(f.Comment)
	}
	for i := range r.WhereConditions {
		c := &r.WhereConditions[i]
		c.Field = strings.TrimSpace(c.Field)
		c.Operator = strings.ToUpper(operatorSpaces.ReplaceAllString(strings.TrimSpace(c.Operator), " "))
		if c.Operator == "<>" {
			c.Operator = "!="
		}
		c.LogicalOp = strings.ToUpper(strings.TrimSpace(c.LogicalOp))
	}
	o := &r.Options
	o.SQLMode = strings.ToUpper(strings.TrimSpace(o.SQLMode))
	o.JoinType = strings.ToUpper(strings.TrimSpace(o.JoinType))
	o.JoinKey = strings.TrimSpace(o.JoinKey)
	o.PartitionVar = strings.TrimSpace(o.PartitionVar)
	o.ViewNameOverride = strings.TrimSpace(o.ViewNameOverride)
}

// applyDefaults 按引擎配置补齐选项，使等价请求得到相同指纹
func (r *Request) applyDefaults(cfg GeneratorConfig) {
	if r.Options.SQLMode == "" {
		r.Options.SQLMode = cfg.SQLMode
	}
	if r.Options.PartitionVar == "" {
		r.Options.PartitionVar = cfg.PartitionVar
	}
	if r.Mode == ModeJoin {
		if r.Options.JoinType == "" {
			r.Options.JoinType = cfg.JoinType
		}
		if r.Options.JoinKey == "" {
			r.Options.JoinKey = cfg.JoinKey
		}
	} else {
		r.Options.JoinType = ""
		r.Options.JoinKey = ""
	}
	for i := range r.WhereConditions {
		if r.WhereConditions[i].LogicalOp == "" {
			r.WhereConditions[i].LogicalOp = "AND"
		}
	}
}

// Validate 规范化后做结构校验，返回第一个出错字段
func (r *Request) Validate() error {
	r.normalize()
	if err := validateStruct(r); err != nil {
		return err
	}
	switch r.Mode {
	case ModeSingle:
		if len(r.Events) != 1 {
			return invalidRequest("events", "single mode requires exactly one event, got %d", len(r.Events))
		}
	case ModeJoin, ModeUnion:
		if len(r.Events) < 2 {
			return invalidRequest("events", "%s mode requires at least two events, got %d", r.Mode, len(r.Events))
		}
	}
	for i, c := range r.WhereConditions {
		if !identifierRe.MatchString(c.Field) && !qualifiedRe.MatchString(c.Field) {
			return invalidRequest(fmt.Sprintf("where_conditions[%d].field", i), "%q is not a column reference", c.Field)
		}
	}
	return nil
}

// Clone 深拷贝，规范化与补默认值不影响调用方持有的请求
func (r *Request) Clone() *Request {
	c := *r
	c.Events = append([]EventRef(nil), r.Events...)
	c.Fields = append([]FieldRef(nil), r.Fields...)
	c.WhereConditions = append([]WhereCondition(nil), r.WhereConditions...)
	c.Warnings = append([]string(nil), r.Warnings...)
	return &c
}
