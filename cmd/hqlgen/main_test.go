package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalog = `
games:
  - gid: 10000147
    name: demo
    events:
      - id: 1
        name: role.login
        params:
          - name: zone_id
            type: int
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestRunGenerate(t *testing.T) {
	dir := t.TempDir()
	cat := writeFile(t, dir, "catalog.yaml", catalog)
	req := writeFile(t, dir, "req.json", `{"mode":"single","events":[{"game_gid":10000147,"event_id":1}],"fields":[{"fieldName":"zone_id","fieldType":"param"}]}`)
	logger, _ := test.NewNullLogger()

	var out bytes.Buffer
	require.NoError(t, run(logger, cat, req, "", "", "", false, &out))
	assert.Contains(t, out.String(), "AS zone_id")
	assert.Contains(t, out.String(), "'${bizdate}'")

	out.Reset()
	require.NoError(t, run(logger, cat, req, "", "", "", true, &out))
	var res map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Len(t, res["fingerprint"], 64)
}

func TestRunGenerateErrors(t *testing.T) {
	dir := t.TempDir()
	cat := writeFile(t, dir, "catalog.yaml", catalog)
	req := writeFile(t, dir, "req.json", `{"mode":"single","events":[{"game_gid":10000147,"event_id":5}],"fields":[{"fieldName":"ds","fieldType":"base"}]}`)
	logger, _ := test.NewNullLogger()

	var out bytes.Buffer
	err := run(logger, cat, req, "", "", "", false, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EventNotFound")

	err = run(logger, "", req, "", "", "", false, &out)
	assert.ErrorContains(t, err, "--catalog")
}

func TestRunValidateAndAnalyze(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.sql", "SELECT a FROM t WHERE ds = '${bizdate}'")
	bad := writeFile(t, dir, "bad.sql", "SELECT a, FROM t")
	logger, _ := test.NewNullLogger()

	var out bytes.Buffer
	require.NoError(t, run(logger, "", "", good, "", "", false, &out))
	assert.Contains(t, out.String(), `"is_valid": true`)

	out.Reset()
	assert.Error(t, run(logger, "", "", bad, "", "", false, &out))
	assert.Contains(t, out.String(), `"is_valid": false`)

	out.Reset()
	require.NoError(t, run(logger, "", "", "", good, "", false, &out))
	assert.Contains(t, out.String(), `"level"`)
}
