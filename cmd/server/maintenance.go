package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carbonlog/internal/db"
	"github.com/carbonlog/internal/service"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func createUser(c *cli.Context) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	if err := rt.openDatabase(); err != nil {
		return err
	}

	username := c.String("username")
	created, err := db.EnsureUser(db.DB, username, c.String("password"), c.String("first-name"))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if !created {
		fmt.Fprintf(c.App.Writer, "用户 %s 已存在，无需创建\n", username)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "用户 %s 创建成功\n", username)
	return nil
}

func seedData(c *cli.Context) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	if err := rt.openDatabase(); err != nil {
		return err
	}

	result, err := db.Seed(db.DB, time.Now())
	if err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	rt.logger.Info("demo data seeded",
		zap.Int("challenges", result.Challenges),
		zap.Int("products", result.Products),
	)
	fmt.Fprintf(c.App.Writer, "新增挑战 %d 个，商品 %d 个\n", result.Challenges, result.Products)
	return nil
}

func settingService() (*service.SystemSettingService, error) {
	rt, err := loadRuntime()
	if err != nil {
		return nil, err
	}
	if err := rt.openDatabase(); err != nil {
		return nil, err
	}
	return service.NewSystemSettingService(db.DB, rt.aiDefaults()), nil
}

func setSetting(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit(fmt.Sprintf("usage: settings set <key> <value>, keys: %s", strings.Join(service.SettingKeys(), ", ")), 2)
	}

	svc, err := settingService()
	if err != nil {
		return err
	}

	key := c.Args().Get(0)
	if err := svc.Set(key, c.Args().Get(1)); err != nil {
		if errors.Is(err, service.ErrUnknownSetting) {
			return cli.Exit(fmt.Sprintf("unknown key %q, keys: %s", key, strings.Join(service.SettingKeys(), ", ")), 2)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "已保存 %s\n", key)
	return nil
}

func showSettings(c *cli.Context) error {
	svc, err := settingService()
	if err != nil {
		return err
	}

	settings, err := svc.GetSettings()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "ai_provider      %s\n", settings.AIProvider)
	fmt.Fprintf(c.App.Writer, "ai_model         %s\n", settings.AIModel)
	fmt.Fprintf(c.App.Writer, "openai_api_key   %s\n", maskKey(settings.OpenAIAPIKey))
	fmt.Fprintf(c.App.Writer, "deepseek_api_key %s\n", maskKey(settings.DeepSeekAPIKey))
	return nil
}

func testAIConnection(c *cli.Context) error {
	svc, err := settingService()
	if err != nil {
		return err
	}
	if err := svc.TestAIConnection(c.Context); err != nil {
		return fmt.Errorf("ai connection: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "AI 接口连接正常")
	return nil
}

func maskKey(key string) string {
	if key == "" {
		return "(未设置)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:3] + "****" + key[len(key)-4:]
}
