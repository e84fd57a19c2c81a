package database

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ==================== 测试辅助 ====================

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func smsLogsConfig(t *testing.T) *PartitionConfig {
	cfg, err := ParsePartitionConfig("sms_logs,6")
	require.NoError(t, err)
	return cfg
}

// ==================== 配置解析 ====================

func TestParsePartitionConfig(t *testing.T) {
	cfg, err := ParsePartitionConfig("# comment\n\nsms_logs, 6\naudit_logs,0\n")
	require.NoError(t, err)
	require.Len(t, cfg.Tables, 2)
	assert.Equal(t, "sms_logs", cfg.Tables[0].TableName)
	assert.Equal(t, 6, cfg.Tables[0].RetentionMonth)
	assert.Equal(t, 0, cfg.Tables[1].RetentionMonth)
	assert.True(t, cfg.IsPartitionedTable("audit_logs"))
	assert.False(t, cfg.IsPartitionedTable("orders"))

	for _, bad := range []string{"sms_logs", "sms_logs,abc", "a,1,2", "sms_logs,-1"} {
		_, err := ParsePartitionConfig(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadPartitionConfig_Embedded(t *testing.T) {
	cfg, err := LoadPartitionConfig(PartitionSQL, "partitions")
	require.NoError(t, err)
	require.Len(t, cfg.Tables, 1)

	tbl := cfg.Tables[0]
	assert.Equal(t, "sms_logs", tbl.TableName)
	require.Len(t, tbl.Statements, 3)
	assert.Contains(t, tbl.Statements[0], "PARTITION BY RANGE (created_at)")
}

func TestLoadPartitionConfig_MissingSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/partition_tables.conf": {Data: []byte("orders_archive,12\n")},
	}
	_, err := LoadPartitionConfig(fsys, "sql")
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	stmts := SplitStatements("-- header\nCREATE TABLE a (id int);\n\n;  \nCREATE INDEX i ON a (id);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id int)", "CREATE INDEX i ON a (id)"}, stmts)
}

func TestParsePartitionMonth(t *testing.T) {
	m, ok := ParsePartitionMonth("sms_logs_y2026m03", "sms_logs")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), m)

	_, ok = ParsePartitionMonth("sms_logs_default", "sms_logs")
	assert.False(t, ok)
	_, ok = ParsePartitionMonth("orders_y2026m03", "sms_logs")
	assert.False(t, ok)
	_, ok = ParsePartitionMonth("sms_logs_y2026m13", "sms_logs")
	assert.False(t, ok)
}

// ==================== 分区 SQL ====================

func TestEnsurePartitions(t *testing.T) {
	db, mock := setupMockDB(t)
	m := NewPartitionManager(db, smsLogsConfig(t))

	want := []string{
		`CREATE TABLE IF NOT EXISTS "sms_logs_y2026m11" PARTITION OF "sms_logs" FOR VALUES FROM ('2026-11-01') TO ('2026-12-01')`,
		`CREATE TABLE IF NOT EXISTS "sms_logs_y2026m12" PARTITION OF "sms_logs" FOR VALUES FROM ('2026-12-01') TO ('2027-01-01')`,
		`CREATE TABLE IF NOT EXISTS "sms_logs_y2027m01" PARTITION OF "sms_logs" FOR VALUES FROM ('2027-01-01') TO ('2027-02-01')`,
	}
	for _, sql := range want {
		mock.ExpectExec(regexp.QuoteMeta(sql)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	n, err := m.EnsurePartitions(context.Background(), time.Date(2026, 11, 18, 10, 0, 0, 0, time.UTC), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDropExpiredPartitions(t *testing.T) {
	db, mock := setupMockDB(t)
	m := NewPartitionManager(db, smsLogsConfig(t))

	rows := sqlmock.NewRows([]string{"partition_name", "partition_range", "size_bytes"}).
		AddRow("sms_logs_default", "DEFAULT", 0).
		AddRow("sms_logs_y2025m12", "", 8192).
		AddRow("sms_logs_y2026m03", "", 8192).
		AddRow("sms_logs_y2026m04", "", 8192)
	mock.ExpectQuery("FROM pg_inherits").WithArgs("sms_logs").WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "sms_logs_y2025m12"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "sms_logs_y2026m03"`)).WillReturnResult(sqlmock.NewResult(0, 0))

	// 保留 6 个月：2026-10 往前推到 2026-04，之前的都删除
	dropped, err := m.DropExpiredPartitions(context.Background(), time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInitPartitionTables(t *testing.T) {
	db, mock := setupMockDB(t)
	cfg, err := LoadPartitionConfig(PartitionSQL, "partitions")
	require.NoError(t, err)
	m := NewPartitionManager(db, cfg)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sms_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_sms_logs_status_created").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_sms_logs_phone").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, m.InitPartitionTables(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
