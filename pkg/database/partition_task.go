package database

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MaintenanceReport 一次分区维护的结果
type MaintenanceReport struct {
	Ensured  int          `json:"ensured"`
	Dropped  int          `json:"dropped"`
	Stats    []TableStats `json:"stats"`
	Duration string       `json:"duration"`
}

// Maintain 执行一次分区维护：
// 1. 确保未来 monthsAhead 个月分区
// 2. 删除过期分区
// 3. 统计
func (m *PartitionManager) Maintain(ctx context.Context, now time.Time, monthsAhead int) (*MaintenanceReport, error) {
	start := time.Now()
	report := &MaintenanceReport{}

	ensured, err := m.EnsurePartitions(ctx, now, monthsAhead)
	report.Ensured = ensured
	if err != nil {
		return report, err
	}

	dropped, err := m.DropExpiredPartitions(ctx, now)
	report.Dropped = dropped
	if err != nil {
		return report, err
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		// 统计失败不影响维护结果
		m.log.Warn("获取分区统计失败", zap.Error(err))
	}
	report.Stats = stats
	report.Duration = time.Since(start).String()

	for _, s := range stats {
		m.log.Info("分区统计",
			zap.String("table", s.TableName),
			zap.Int("partitions", s.PartitionCount),
			zap.Float64("size_mb", float64(s.TotalSizeBytes)/1024/1024),
		)
	}
	return report, nil
}
