package database

import "embed"

// PartitionSQL 分区表建表 SQL 与保留期配置
//
//go:embed partitions/*.sql partitions/*.conf
var PartitionSQL embed.FS
