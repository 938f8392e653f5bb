package hql

import (
	"errors"
	"fmt"

	"HQLPreview/internal/hql/paramtype"
)

// 生成引擎的错误分类，调用方使用 errors.Is 判断
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrEventNotFound       = errors.New("event not found")
	ErrDuplicateAlias      = errors.New("duplicate alias")
	ErrEmptyFieldList      = errors.New("empty field list")
	ErrInvalidType         = paramtype.ErrInvalidType
	ErrInvalidJSONPath     = errors.New("invalid json path")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrRepository          = errors.New("repository error")
	ErrInternal            = errors.New("internal error")
)

// RequestError 请求结构不合法，FieldPath 指向第一个出错的字段（如 fields[2].alias）
type RequestError struct {
	FieldPath string
	Reason    string
}

func (e *RequestError) Error() string {
	if e.FieldPath == "" {
		return fmt.Sprintf("invalid request: %s", e.Reason)
	}
	return fmt.Sprintf("invalid request: %s: %s", e.FieldPath, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

func invalidRequest(path, format string, args ...any) error {
	return &RequestError{FieldPath: path, Reason: fmt.Sprintf(format, args...)}
}

var userErrors = []struct {
	err  error
	kind string
}{
	{ErrInvalidRequest, "InvalidRequest"},
	{ErrEventNotFound, "EventNotFound"},
	{ErrDuplicateAlias, "DuplicateAlias"},
	{ErrEmptyFieldList, "EmptyFieldList"},
	{ErrInvalidType, "InvalidType"},
	{ErrInvalidJSONPath, "InvalidJsonPath"},
	{ErrUnsupportedOperator, "UnsupportedOperator"},
}

// ErrorKind 返回错误分类名称，用于接口响应
func ErrorKind(err error) string {
	for _, u := range userErrors {
		if errors.Is(err, u.err) {
			return u.kind
		}
	}
	if errors.Is(err, ErrRepository) {
		return "RepositoryError"
	}
	return "Internal"
}

// IsUserError 请求本身有问题（对应 HTTP 400），其余为服务端错误
func IsUserError(err error) bool {
	for _, u := range userErrors {
		if errors.Is(err, u.err) {
			return true
		}
	}
	return false
}
