package database

import (
	"bufio"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
)

const partitionConfFile = "partition_tables.conf"

// PartitionTableConfig 分区表配置
type PartitionTableConfig struct {
	TableName      string   // 表名
	RetentionMonth int      // 保留月数（0=永久）
	Statements     []string // 建表 SQL（按语句拆分）
}

// PartitionConfig 分区配置
type PartitionConfig struct {
	Tables []PartitionTableConfig
}

// LoadPartitionConfig 从文件系统加载配置
// 嵌入文件传 PartitionSQL，开发调试可传 os.DirFS(dir)
func LoadPartitionConfig(fsys fs.FS, root string) (*PartitionConfig, error) {
	confData, err := fs.ReadFile(fsys, path.Join(root, partitionConfFile))
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg, err := ParsePartitionConfig(string(confData))
	if err != nil {
		return nil, err
	}

	for i := range cfg.Tables {
		sqlFile := cfg.Tables[i].TableName + ".sql"
		sqlData, err := fs.ReadFile(fsys, path.Join(root, sqlFile))
		if err != nil {
			return nil, fmt.Errorf("读取 SQL 文件 %s 失败: %w", sqlFile, err)
		}
		cfg.Tables[i].Statements = SplitStatements(string(sqlData))
		if len(cfg.Tables[i].Statements) == 0 {
			return nil, fmt.Errorf("SQL 文件 %s 为空", sqlFile)
		}
	}
	return cfg, nil
}

// ParsePartitionConfig 解析 "表名,保留月数" 格式的配置
func ParsePartitionConfig(content string) (*PartitionConfig, error) {
	cfg := &PartitionConfig{}
	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		name, retentionStr, ok := strings.Cut(line, ",")
		if !ok || strings.Contains(retentionStr, ",") {
			return nil, fmt.Errorf("配置第 %d 行格式错误: %s", lineNum, line)
		}
		retention, err := strconv.Atoi(strings.TrimSpace(retentionStr))
		if err != nil || retention < 0 {
			return nil, fmt.Errorf("配置第 %d 行保留月数无效: %s", lineNum, retentionStr)
		}

		cfg.Tables = append(cfg.Tables, PartitionTableConfig{
			TableName:      strings.TrimSpace(name),
			RetentionMonth: retention,
		})
	}
	return cfg, scanner.Err()
}

// SplitStatements 按分号拆分 SQL 语句，去掉空语句和整行注释
func SplitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		var lines []string
		for _, l := range strings.Split(stmt, "\n") {
			if strings.HasPrefix(strings.TrimSpace(l), "--") {
				continue
			}
			lines = append(lines, l)
		}
		if s := strings.TrimSpace(strings.Join(lines, "\n")); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// TableNames 获取所有分区表名
func (c *PartitionConfig) TableNames() []string {
	names := make([]string, len(c.Tables))
	for i, t := range c.Tables {
		names[i] = t.TableName
	}
	return names
}

// IsPartitionedTable 检查是否为分区表
func (c *PartitionConfig) IsPartitionedTable(name string) bool {
	for _, t := range c.Tables {
		if t.TableName == name {
			return true
		}
	}
	return false
}
