package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"HQLPreview/internal/hql"
	"HQLPreview/internal/hql/paramtype"
	"HQLPreview/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestMetadataRepositoryGetGame(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "games" WHERE gid = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"gid", "name", "ods_db"}).AddRow(10000147, "测试游戏", ""))
	g, err := repo.GetGame(context.Background(), 10000147)
	require.NoError(t, err)
	assert.Equal(t, &hql.Game{GID: 10000147, Name: "测试游戏", OdsDB: "ieu_ods"}, g)

	mock.ExpectQuery(`SELECT \* FROM "games" WHERE gid = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"gid", "name", "ods_db"}))
	g, err = repo.GetGame(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, g)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(`SELECT \* FROM "games"`).WillReturnError(dbErr)
	_, err = repo.GetGame(context.Background(), 1)
	assert.ErrorIs(t, err, dbErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataRepositoryGetEvent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "events" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "game_gid", "event_name", "event_name_cn", "source_table", "target_table", "category_id"}).
			AddRow(1, 10000147, "role.login", "角色登录", "", "ieu_cdm.v_login", 3))
	e, err := repo.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, &hql.Event{ID: 1, GameGID: 10000147, Name: "role.login", NameCN: "角色登录", TargetTable: "ieu_cdm.v_login", CategoryID: 3}, e)

	mock.ExpectQuery(`SELECT \* FROM "events" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	e, err = repo.GetEvent(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, e)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataRepositoryListParameters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "event_params" WHERE event_id = \$1 AND is_active = \$2 ORDER BY id ASC`).
		WithArgs(1, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_id", "param_name", "param_type", "json_path", "description", "is_active"}).
			AddRow(10, 1, "zone_id", "int", "$.zoneId", "区服", true).
			AddRow(11, 1, "tags", "array<string>", "", "", true).
			AddRow(12, 1, "legacy", "array<", "", "", true))
	params, err := repo.ListParameters(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, params, 3)
	assert.Equal(t, "zone_id", params[0].Name)
	assert.True(t, paramtype.Equal(paramtype.MustParse("int"), params[0].Type))
	assert.Equal(t, "array<string>", params[1].Type.String())
	// 无法解析的历史类型按 string 处理
	assert.Equal(t, "string", params[2].Type.String())
	assert.True(t, params[2].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMetadataRepositoryListEvents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetadataRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "events" WHERE game_gid = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))
	mock.ExpectQuery(`SELECT \* FROM "events" WHERE game_gid = \$1 ORDER BY id ASC LIMIT \$2 OFFSET \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "game_gid", "event_name"}).AddRow(21, 10000147, "pay"))
	events, total, err := repo.ListEvents(context.Background(), 10000147, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(41), total)
	require.Len(t, events, 1)
	assert.Equal(t, "pay", events[0].EventName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositorySave(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "generation_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	rec := &model.GenerationRecord{
		Fingerprint: strings.Repeat("a", 64),
		Mode:        hql.ModeSingle,
		GameGID:     10000147,
		EventIDs:    datatypes.JSON(`[1]`),
		Request:     datatypes.JSON(`{"mode":"single"}`),
		HQL:         "SELECT 1",
	}
	require.NoError(t, repo.Save(context.Background(), rec))
	assert.Equal(t, uint64(7), rec.ID)
	assert.Len(t, rec.RecordUUID, 36)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositorySaveError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "generation_records"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), &model.GenerationRecord{Fingerprint: "fp", RecordUUID: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fingerprint: fp")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "generation_records" WHERE game_gid = \$1 AND mode = \$2`).
		WithArgs(10000147, "join").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "generation_records" WHERE game_gid = \$1 AND mode = \$2 ORDER BY id DESC LIMIT \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fingerprint", "mode", "hql"}).
			AddRow(9, "f2", "join", "SELECT 2").
			AddRow(8, "f1", "join", "SELECT 1"))

	records, total, err := repo.List(context.Background(), HistoryFilter{GameGID: 10000147, Mode: "join"}, 0, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	assert.Equal(t, uint64(9), records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryRepositoryGetLatestByFingerprint(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewHistoryRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "generation_records" WHERE fingerprint = \$1 ORDER BY id DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fingerprint", "hql"}).AddRow(3, "abc", "SELECT 1"))
	rec, err := repo.GetLatestByFingerprint(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "SELECT 1", rec.HQL)

	mock.ExpectQuery(`SELECT \* FROM "generation_records" WHERE fingerprint = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rec, err = repo.GetLatestByFingerprint(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
	require.NoError(t, mock.ExpectationsWereMet())
}

const testCatalog = `
games:
  - gid: 10000147
    name: 测试游戏
    events:
      - id: 1
        name: role.login
        params:
          - name: zone_id
            type: int
            json_path: $.zoneId
          - name: old_flag
            type: int
            active: false
      - id: 2
        name: role.logout
  - gid: 200
    ods_db: overseas_ods
    events:
      - id: 9
        name: pay
        params:
          - name: tags
            type: array<string>
`

func TestCatalogRepository(t *testing.T) {
	repo, err := LoadCatalog(strings.NewReader(testCatalog))
	require.NoError(t, err)
	ctx := context.Background()

	g, err := repo.GetGame(ctx, 10000147)
	require.NoError(t, err)
	assert.Equal(t, "ieu_ods", g.OdsDB)
	g, err = repo.GetGame(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, "overseas_ods", g.OdsDB)
	g, err = repo.GetGame(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, g)

	e, err := repo.GetEvent(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(200), e.GameGID)

	params, err := repo.ListParameters(ctx, 1)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "$.zoneId", params[0].JSONPath)

	params, err = repo.ListParameters(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestCatalogRepositoryWithEngine(t *testing.T) {
	repo, err := LoadCatalog(strings.NewReader(testCatalog))
	require.NoError(t, err)
	e := hql.NewEngine(repo, hql.DefaultGeneratorConfig(), nil)

	res, err := e.Generate(context.Background(), &hql.Request{
		Mode:   hql.ModeSingle,
		Events: []hql.EventRef{{GameGID: 200, EventID: 9}},
		Fields: []hql.FieldRef{{FieldName: "tags", FieldType: hql.FieldParam}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.HQL, "CREATE OR REPLACE VIEW overseas_ods.v_dwd_200_pay_di AS")
	assert.Contains(t, res.HQL, "FROM overseas_ods.ods_200_all_view AS e")
}

func TestCatalogRepositoryInvalid(t *testing.T) {
	tests := map[string]string{
		"bad type":     "games:\n  - gid: 1\n    events:\n      - id: 1\n        params:\n          - name: a\n            type: map<int\n",
		"dup event":    "games:\n  - gid: 1\n    events:\n      - id: 1\n      - id: 1\n",
		"missing gid":  "games:\n  - name: x\n",
		"invalid yaml": "games: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(content))
			assert.Error(t, err)
		})
	}

	repo, err := LoadCatalog(strings.NewReader(""))
	require.NoError(t, err)
	g, err := repo.GetGame(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, g)
}
