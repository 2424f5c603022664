// @title Comic English 后端 API
// @version 1.0
// @description 漫画英语学习平台的后端服务：内容生成、学习模块、作答计分、排行榜和教师报表。

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"comic_english_backend/internal/app"
	"comic_english_backend/internal/config"
	"comic_english_backend/pkg/logger"
	"flag"
	"fmt"
	"log"

	"github.com/common-nighthawk/go-figure"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "configs", "配置文件所在目录")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg, *configPath)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	printStartUpBanner(cfg)
	application.Run()
}

func printStartUpBanner(cfg *config.Config) {
	figure.NewFigure("COMIC ENGLISH", "", true).Print()

	fmt.Println("======================================================")
	fmt.Printf("Comic English API (mode=%s, port=%s, db=%s)\n\n", cfg.Server.Mode, cfg.Server.Port, cfg.Database.Driver)
}
