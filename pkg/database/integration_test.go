//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm/logger"
)

// 需要本地 Docker: go test -tags integration ./pkg/database/...
func TestPartitionLifecycle_Postgres(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("phonebay_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := InitDB(Options{DSN: dsn, MaxOpenConns: 5, Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	init, err := NewInitializer(db, InitOptions{FutureMonths: 2})
	require.NoError(t, err)
	require.NoError(t, init.Initialize(ctx))
	// 重复执行不报错
	require.NoError(t, init.Initialize(ctx))

	m := init.Manager()
	now := time.Now()

	// 插入一条当月记录，落在分区内
	require.NoError(t, db.Exec(`INSERT INTO sms_logs (phone, message, status) VALUES ('8801712345678', 'hi', 'sent')`).Error)

	// 手工造一个很早的分区，维护时应被删除
	old := now.AddDate(-2, 0, 0)
	_, err = m.EnsurePartitions(ctx, old, 0)
	require.NoError(t, err)

	report, err := m.Maintain(ctx, now, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dropped)
	require.Len(t, report.Stats, 1)
	assert.Equal(t, 3, report.Stats[0].PartitionCount)

	parts, err := m.ListPartitions(ctx, "sms_logs")
	require.NoError(t, err)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, PartitionName("sms_logs", now))
	assert.NotContains(t, names, PartitionName("sms_logs", old))
}
