package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PartitionManager 按月范围分区管理器
type PartitionManager struct {
	db     *gorm.DB
	config *PartitionConfig
	log    *zap.Logger
}

// NewPartitionManager 创建分区管理器
func NewPartitionManager(db *gorm.DB, config *PartitionConfig) *PartitionManager {
	return &PartitionManager{db: db, config: config, log: zap.L().Named("partition")}
}

// PartitionName 分区名: <表名>_yYYYYmMM
func PartitionName(table string, month time.Time) string {
	return fmt.Sprintf("%s_y%dm%02d", table, month.Year(), month.Month())
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ==================== 初始化 ====================

// InitPartitionTables 创建分区主表（语句均为 IF NOT EXISTS，可重复执行）
func (m *PartitionManager) InitPartitionTables(ctx context.Context) error {
	for _, table := range m.config.Tables {
		for _, stmt := range table.Statements {
			if err := m.db.WithContext(ctx).Exec(stmt).Error; err != nil {
				return fmt.Errorf("创建表 %s 失败: %w", table.TableName, err)
			}
		}
		m.log.Info("分区主表就绪", zap.String("table", table.TableName))
	}
	return nil
}

// ==================== 分区创建 ====================

// EnsurePartitions 确保 from 所在月份及之后 monthsAhead 个月的分区存在
func (m *PartitionManager) EnsurePartitions(ctx context.Context, from time.Time, monthsAhead int) (int, error) {
	created := 0
	start := monthStart(from)
	for i := 0; i <= monthsAhead; i++ {
		month := start.AddDate(0, i, 0)
		for _, table := range m.config.Tables {
			if err := m.createPartition(ctx, table.TableName, month); err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}

func (m *PartitionManager) createPartition(ctx context.Context, table string, month time.Time) error {
	start := monthStart(month)
	end := start.AddDate(0, 1, 0)
	name := PartitionName(table, start)

	sql := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM (%s) TO (%s)",
		pq.QuoteIdentifier(name), pq.QuoteIdentifier(table),
		pq.QuoteLiteral(start.Format("2006-01-02")),
		pq.QuoteLiteral(end.Format("2006-01-02")),
	)
	if err := m.db.WithContext(ctx).Exec(sql).Error; err != nil {
		return fmt.Errorf("创建分区 %s 失败: %w", name, err)
	}
	m.log.Debug("分区就绪", zap.String("partition", name))
	return nil
}

// ==================== 分区清理 ====================

// DropExpiredPartitions 删除超过保留期的分区，返回删除数量
func (m *PartitionManager) DropExpiredPartitions(ctx context.Context, now time.Time) (int, error) {
	dropped := 0
	for _, table := range m.config.Tables {
		if table.RetentionMonth == 0 {
			continue // 永久保留
		}
		cutoff := monthStart(now).AddDate(0, -table.RetentionMonth, 0)

		partitions, err := m.ListPartitions(ctx, table.TableName)
		if err != nil {
			return dropped, fmt.Errorf("列出 %s 分区失败: %w", table.TableName, err)
		}

		for _, p := range partitions {
			month, ok := ParsePartitionMonth(p.Name, table.TableName)
			if !ok || !month.Before(cutoff) {
				continue
			}
			if err := m.db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + pq.QuoteIdentifier(p.Name)).Error; err != nil {
				m.log.Warn("删除过期分区失败", zap.String("partition", p.Name), zap.Error(err))
				continue
			}
			m.log.Info("已删除过期分区", zap.String("partition", p.Name))
			dropped++
		}
	}
	return dropped, nil
}

// ParsePartitionMonth 从分区名解析月份
func ParsePartitionMonth(partitionName, table string) (time.Time, bool) {
	suffix, ok := strings.CutPrefix(partitionName, table+"_y")
	if !ok {
		return time.Time{}, false
	}
	var year, month int
	if n, err := fmt.Sscanf(suffix, "%4dm%2d", &year, &month); err != nil || n != 2 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

// ==================== 分区查询 ====================

// PartitionInfo 分区信息
type PartitionInfo struct {
	Name      string `gorm:"column:partition_name"`
	Range     string `gorm:"column:partition_range"`
	SizeBytes int64  `gorm:"column:size_bytes"`
}

// ListPartitions 列出表的所有分区
func (m *PartitionManager) ListPartitions(ctx context.Context, table string) ([]PartitionInfo, error) {
	var partitions []PartitionInfo
	err := m.db.WithContext(ctx).Raw(`
		SELECT child.relname AS partition_name,
		       pg_get_expr(child.relpartbound, child.oid) AS partition_range,
		       pg_total_relation_size(child.oid) AS size_bytes
		FROM pg_inherits
		JOIN pg_class parent ON pg_inherits.inhparent = parent.oid
		JOIN pg_class child ON pg_inherits.inhrelid = child.oid
		WHERE parent.relname = ?
		ORDER BY child.relname`, table).Scan(&partitions).Error
	return partitions, err
}

// TableStats 表统计
type TableStats struct {
	TableName      string `gorm:"column:table_name" json:"table_name"`
	PartitionCount int    `gorm:"column:partition_count" json:"partition_count"`
	TotalSizeBytes int64  `gorm:"column:total_size_bytes" json:"total_size_bytes"`
}

// Stats 获取所有分区表统计
func (m *PartitionManager) Stats(ctx context.Context) ([]TableStats, error) {
	var stats []TableStats
	names := m.config.TableNames()
	if len(names) == 0 {
		return stats, nil
	}

	err := m.db.WithContext(ctx).Raw(`
		SELECT parent.relname AS table_name,
		       COUNT(child.relname) AS partition_count,
		       COALESCE(SUM(pg_total_relation_size(child.oid)), 0) AS total_size_bytes
		FROM pg_inherits
		JOIN pg_class parent ON pg_inherits.inhparent = parent.oid
		JOIN pg_class child ON pg_inherits.inhrelid = child.oid
		WHERE parent.relname IN ?
		GROUP BY parent.relname
		ORDER BY parent.relname`, names).Scan(&stats).Error
	return stats, err
}
