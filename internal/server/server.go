package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"dualsight/internal/camera"
	"dualsight/internal/capture"
	"dualsight/internal/config"
	"dualsight/internal/logger"
	"dualsight/internal/rig"
	"dualsight/internal/timelapse"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間
const shutdownTimeout = 5 * time.Second

// Server はHTTPサーバーを表す
type Server struct {
	config     *config.Config
	rig        *rig.Rig
	fs         afero.Fs // 温度行列の変換に使うファイルシステム
	engine     *gin.Engine
	httpServer *http.Server
	timelapse  *timelapse.Manager
	upgrader   websocket.Upgrader
	logger     zerolog.Logger

	// リクエストのコンテキストの親。Shutdownでキャンセルし、配信中のハンドラーを終わらせる
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// New は新しいサーバーを作成する
func New(cfg *config.Config, r *rig.Rig, fs afero.Fs, l zerolog.Logger) *Server {
	s := &Server{
		config: cfg,
		rig:    r,
		fs:     fs,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.WithComponent(l, "server"),
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	s.timelapse = timelapse.NewManager(func(ctx context.Context, dir string) (*capture.Result, error) {
		return r.Capture(ctx, rig.CaptureOptions{Dir: dir})
	}, l)

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      s.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

// Handler はルーティング済みのハンドラーを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はルーティングを設定する
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/devices", s.handleDevices)

	visible := api.Group("/visible")
	visible.POST("/open", s.handleVisibleOpen)
	visible.POST("/close", s.handleVisibleClose)
	visible.POST("/start", s.previewStart(camera.KindVisible))
	visible.POST("/stop", s.previewStop(camera.KindVisible))
	visible.GET("/params/:name", s.getParameter(camera.KindVisible))
	visible.PUT("/params/:name", s.setParameter(camera.KindVisible))

	infrared := api.Group("/infrared")
	infrared.POST("/login", s.handleInfraredLogin)
	infrared.POST("/logout", s.handleInfraredLogout)
	infrared.POST("/start", s.previewStart(camera.KindInfrared))
	infrared.POST("/stop", s.previewStop(camera.KindInfrared))
	infrared.POST("/autofocus", s.handleAutofocus)
	infrared.POST("/shutter", s.handleShutter)
	infrared.PUT("/palette", s.handlePalette)
	infrared.GET("/params/:name", s.getParameter(camera.KindInfrared))
	infrared.PUT("/params/:name", s.setParameter(camera.KindInfrared))

	api.POST("/capture", s.handleCapture)
	api.POST("/render", s.handleRender)

	tl := api.Group("/timelapse")
	tl.GET("", s.handleTimelapseStatus)
	tl.POST("/start", s.handleTimelapseStart)
	tl.POST("/stop", s.handleTimelapseStop)

	cfg := api.Group("/config")
	cfg.GET("", s.handleGetConfig)
	cfg.PUT("/store", s.handleUpdateStore)
	cfg.POST("/reset", s.handleResetConfig)

	api.GET("/stream/:kind", s.handleStream)
	s.engine.GET("/ws/:kind", s.handleWebSocket)
}

// requestLogger はリクエストをzerologで記録するミドルウェア
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := s.logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("リクエスト")
	}
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve はlnで接続を受け付け、シグナルかctxのキャンセルでシャットダウンする
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if s.config.Timelapse.Enabled {
		if err := s.timelapse.Start(ctx, s.timelapseConfig(s.config.Timelapse)); err != nil {
			s.logger.Warn().Err(err).Msg("タイムラプスを開始できません")
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", ln.Addr().String()).Msg("サーバーを起動しています")
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case <-ctx.Done():
		s.logger.Info().Msg("コンテキストがキャンセルされました")
	}

	return s.Shutdown()
}

// Shutdown はサーバーを停止し、デバイスを解放する
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("サーバーをシャットダウンしています")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 配信中のプレビューはクライアントが切断するまで終わらないため先に打ち切る
	s.baseCancel()

	var errs []error
	if err := s.timelapse.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("サーバーのシャットダウンに失敗: %w", err))
	}
	if err := s.rig.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("デバイスの解放に失敗: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.Info().Msg("サーバーが正常に停止しました")
	return nil
}
