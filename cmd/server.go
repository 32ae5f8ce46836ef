// Package main はdualsightサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"dualsight/internal/config"
	"dualsight/internal/logger"
	"dualsight/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "dualsight.yaml", "設定ファイルのパス")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("dualsight")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	notices := config.NewValidator().Apply(cfg)

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("ロガーの初期化に失敗しました: %v", err)
	}
	l := logger.GetLogger()
	for _, n := range notices {
		l.Warn().Str("field", n.Field).Str("reason", n.Reason).Interface("default", n.Default).Msg("不正な設定値を既定値に戻しました")
	}

	if err := cfg.Validate(); err != nil {
		l.Fatal().Err(err).Msg("設定が不正です")
	}

	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.NewFromConfig(cfg, *configPath, l)
	if err != nil {
		l.Fatal().Err(err).Msg("サーバーの作成に失敗しました")
	}

	// サーバーを起動
	l.Info().Str("address", cfg.ServerAddress()).Str("driver", cfg.Driver).Msg("dualsight サーバーを起動します")
	if err := srv.Start(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("サーバーの起動に失敗しました")
	}
}
