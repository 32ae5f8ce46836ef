package rig

import (
	"fmt"

	"github.com/rs/zerolog"

	"dualsight/internal/camera"
	"dualsight/internal/config"
	"dualsight/internal/logger"
	"dualsight/internal/sdk/sim"
)

// NewAdapters は設定のドライバー名に対応するSDKでアダプターを作成する
func NewAdapters(cfg *config.Config, l zerolog.Logger) (camera.Adapter, camera.ThermalAdapter, error) {
	switch cfg.Driver {
	case config.DefaultDriver:
		visibleSDK := sim.NewVisible(nil, camera.Resolution{})
		infraredSDK := sim.NewInfrared(sim.InfraredOptions{
			User:     cfg.Infrared.User,
			Password: cfg.Infrared.Password,
		})
		return camera.NewVisibleAdapter(visibleSDK, logger.WithComponent(l, "camera")),
			camera.NewInfraredAdapter(infraredSDK, logger.WithComponent(l, "camera")),
			nil
	default:
		return nil, nil, fmt.Errorf("未対応のドライバー: %s", cfg.Driver)
	}
}
