package server

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"dualsight/internal/config"
	"dualsight/internal/rig"
)

// NewFromConfig は設定からアダプターとRigを組み立ててサーバーを作成する
//
// configPathが空でなければ、APIからの設定変更をそのファイルに保存する。
func NewFromConfig(cfg *config.Config, configPath string, logger zerolog.Logger) (*Server, error) {
	visible, infrared, err := rig.NewAdapters(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("アダプターの作成に失敗: %w", err)
	}

	fs := afero.NewOsFs()
	r := rig.New(rig.Options{
		Visible:    visible,
		Infrared:   infrared,
		Fs:         fs,
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
	})
	return New(cfg, r, fs, logger), nil
}
