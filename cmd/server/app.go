package main

import (
	"fmt"

	"github.com/carbonlog/internal/config"
	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/logging"
	"github.com/carbonlog/internal/service"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// runtime 为各子命令共享的初始化结果
type runtime struct {
	cfg    config.AppConfig
	logger *zap.Logger
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "carbonlog"
	app.Usage = "个人碳足迹记录服务"
	app.Action = startServer
	app.Commands = []*cli.Command{
		{
			Action:      startServer,
			Name:        "serve",
			Usage:       "Start the HTTP API",
			Category:    "Server",
			Description: `Runs migrations and serves the JSON API on LISTEN_ADDR.`,
		},
		{
			Action:    createUser,
			Name:      "create-user",
			Usage:     "Create a user if it does not exist",
			ArgsUsage: " ",
			Category:  "Maintenance",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "username", Required: true},
				&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"CARBONLOG_PASSWORD"}},
				&cli.StringFlag{Name: "first-name"},
			},
		},
		{
			Action:   seedData,
			Name:     "seed",
			Usage:    "Insert demo challenges and products",
			Category: "Maintenance",
		},
		{
			Name:     "settings",
			Usage:    "Inspect or change AI settings",
			Category: "Maintenance",
			Subcommands: []*cli.Command{
				{
					Action:    setSetting,
					Name:      "set",
					Usage:     "Store a setting",
					ArgsUsage: "<key> <value>",
				},
				{
					Action: showSettings,
					Name:   "show",
					Usage:  "Print effective settings with keys masked",
				},
				{
					Action: testAIConnection,
					Name:   "test",
					Usage:  "Check connectivity to the configured AI provider",
				},
			},
		},
	}
	return app
}

func loadRuntime() (*runtime, error) {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger}, nil
}

// openDatabase 初始化全局连接并执行迁移
func (r *runtime) openDatabase() error {
	if err := db.Init(r.cfg.DatabaseDriver, r.cfg.DatabaseDSN); err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	r.logger.Info("database ready",
		zap.String("driver", r.cfg.DatabaseDriver),
	)
	return nil
}

func (r *runtime) aiDefaults() service.SystemSettings {
	return service.SystemSettings{
		AIProvider:     r.cfg.AIProvider,
		OpenAIAPIKey:   r.cfg.OpenAIAPIKey,
		DeepSeekAPIKey: r.cfg.DeepSeekAPIKey,
	}
}
