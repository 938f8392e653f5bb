package hql

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalJSON 请求的规范化 JSON：对象键排序，数组保持顺序，数值保持原始文本
func canonicalJSON(r *Request) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	// map 在序列化时按键排序
	return json.Marshal(generic)
}

// fingerprintOf 规范化请求的 SHA-256 十六进制摘要
func fingerprintOf(r *Request) (string, error) {
	b, err := canonicalJSON(r)
	if err != nil {
		return "", fmt.Errorf("%w: fingerprint: %v", ErrInternal, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
