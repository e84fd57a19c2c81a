package database

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Initializer 数据库初始化器
type Initializer struct {
	db             *gorm.DB
	config         *PartitionConfig
	manager        *PartitionManager
	nonPartitioned []interface{}
	futureMonths   int
}

// InitOptions 初始化选项
type InitOptions struct {
	// SQL 来源，默认使用嵌入的 PartitionSQL
	FS   fs.FS
	Root string

	// 非分区表 Model
	NonPartitionedModels []interface{}

	// 创建未来几个月的分区（默认 3）
	FutureMonths int
}

// NewInitializer 创建初始化器
func NewInitializer(db *gorm.DB, opts InitOptions) (*Initializer, error) {
	if opts.FS == nil {
		opts.FS = PartitionSQL
		opts.Root = "partitions"
	}
	if opts.FutureMonths == 0 {
		opts.FutureMonths = 3
	}

	config, err := LoadPartitionConfig(opts.FS, opts.Root)
	if err != nil {
		return nil, fmt.Errorf("加载分区配置失败: %w", err)
	}

	return &Initializer{
		db:             db,
		config:         config,
		manager:        NewPartitionManager(db, config),
		nonPartitioned: opts.NonPartitionedModels,
		futureMonths:   opts.FutureMonths,
	}, nil
}

// Initialize 执行初始化
func (i *Initializer) Initialize(ctx context.Context) error {
	log := zap.L().Named("db")
	start := time.Now()

	// 1. 分区主表
	if err := i.manager.InitPartitionTables(ctx); err != nil {
		return err
	}

	// 2. 未来分区
	if _, err := i.manager.EnsurePartitions(ctx, time.Now(), i.futureMonths); err != nil {
		return err
	}

	// 3. AutoMigrate 非分区表
	if len(i.nonPartitioned) > 0 {
		if err := i.db.WithContext(ctx).AutoMigrate(i.nonPartitioned...); err != nil {
			return fmt.Errorf("AutoMigrate 失败: %w", err)
		}
	}

	log.Info("数据库初始化完成",
		zap.Strings("partitioned", i.config.TableNames()),
		zap.Int("models", len(i.nonPartitioned)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Manager 获取分区管理器
func (i *Initializer) Manager() *PartitionManager {
	return i.manager
}

// IsPartitionedTable 检查是否为分区表
func (i *Initializer) IsPartitionedTable(name string) bool {
	return i.config.IsPartitionedTable(name)
}
