package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"dualsight/internal/config"
	"dualsight/internal/logger"
	"dualsight/internal/server"
)

const configPath = "dualsight.yaml"

func main() {
	// 設定を読み込む
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	notices := config.NewValidator().Apply(cfg)

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("ロガーの初期化に失敗しました: %v", err)
	}
	l := logger.GetLogger()
	for _, n := range notices {
		l.Warn().Str("field", n.Field).Str("reason", n.Reason).Msg("不正な設定値を既定値に戻しました")
	}
	gin.SetMode(gin.ReleaseMode)

	// サーバーを作成
	srv, err := server.NewFromConfig(cfg, configPath, l)
	if err != nil {
		l.Fatal().Err(err).Msg("サーバーの作成に失敗しました")
	}

	// サーバーを起動
	if err := srv.Start(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("サーバーの起動に失敗しました")
	}
}
