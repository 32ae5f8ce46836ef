package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dualsight/internal/timelapse"
)

// TimelapseRequest はタイムラプス開始のリクエスト。省略した項目は設定ファイルの値を使う
type TimelapseRequest struct {
	Interval    string `json:"interval"` // "5s" などのGoの期間表記
	Dir         string `json:"dir"`
	RotateDaily *bool  `json:"rotate_daily"`
}

// timelapseConfig は保存先が空なら現在の保存設定のパスを補う
func (s *Server) timelapseConfig(cfg timelapse.Config) timelapse.Config {
	if cfg.Dir == "" {
		cfg.Dir = s.rig.Config().Store.Path
	}
	return cfg
}

func (s *Server) handleTimelapseStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.timelapse.Status())
}

func (s *Server) handleTimelapseStart(c *gin.Context) {
	var req TimelapseRequest
	if !s.bindOptional(c, &req) {
		return
	}

	cfg := s.config.Timelapse
	if req.Interval != "" {
		d, err := time.ParseDuration(req.Interval)
		if err != nil {
			s.respondBadRequest(c, fmt.Errorf("撮影間隔を解釈できません: %w", err))
			return
		}
		cfg.Interval = d
	}
	if req.Dir != "" {
		cfg.Dir = req.Dir
	}
	if req.RotateDaily != nil {
		cfg.RotateDaily = *req.RotateDaily
	}

	// リクエスト終了後も撮影を続ける
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.timelapse.Start(ctx, s.timelapseConfig(cfg)); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.timelapse.Status())
}

func (s *Server) handleTimelapseStop(c *gin.Context) {
	if err := s.timelapse.Stop(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.timelapse.Status())
}
