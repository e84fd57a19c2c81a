package main

import (
	"encoding/json"
	"fmt"
	"os"

	"phonebay/internal/config"
	"phonebay/internal/logger"
	"phonebay/internal/middleware"
	"phonebay/internal/repository"
	"phonebay/internal/service"
	"phonebay/pkg/cache"
	"phonebay/pkg/database"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// phonebay-datafix 离线执行数据修复，与后台 /api/admin/datafix 共用同一套修复任务
func main() {
	app := &cli.App{
		Name:  "phonebay-datafix",
		Usage: "数据修复工具",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "日志级别"},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "列出可用的修复任务",
				Action: func(c *cli.Context) error {
					svc, err := newDataFixService(c)
					if err != nil {
						return err
					}
					for _, f := range svc.List() {
						fmt.Fprintf(c.App.Writer, "%-28s %s\n", f.Name, f.Description)
					}
					return nil
				},
			},
			{
				Name:      "run",
				Usage:     "执行修复任务",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "只统计不写库"},
				},
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return cli.Exit("缺少任务名，可用 list 查看", 2)
					}
					svc, err := newDataFixService(c)
					if err != nil {
						return err
					}

					report, runErr := svc.Run(c.Context, name, c.Bool("dry-run"))
					if report != nil {
						enc := json.NewEncoder(c.App.Writer)
						enc.SetIndent("", "  ")
						if err := enc.Encode(report); err != nil {
							return err
						}
					}
					if runErr != nil {
						return cli.Exit(runErr.Error(), 1)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDataFixService(c *cli.Context) (*service.DataFixService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	log, _ := logger.Init(logger.Config{Level: c.String("log-level"), Format: "console", Output: "stderr"})

	db, err := database.InitDB(database.Options{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: 4,
		Logger:       logger.NewGormLogger(log.Named("gorm"), cfg.Database.LogLevel, cfg.Database.SlowThreshold),
	})
	if err != nil {
		return nil, err
	}
	if err := middleware.RegisterAuditCallbacks(db); err != nil {
		return nil, err
	}

	uow := repository.NewUnitOfWork(db)
	settings := service.NewSettingsService(uow.Settings, cache.NewMemory(cfg.Redis.TTL))
	// 离线修复不发通知
	emi := service.NewEMIService(uow, settings, nil)
	log.Debug("数据修复工具就绪", zap.String("db", cfg.Database.DBName))
	return service.NewDataFixService(uow, emi), nil
}
