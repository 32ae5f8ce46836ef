package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dualsight/internal/camera"
	"dualsight/internal/capture"
	"dualsight/internal/config"
	"dualsight/internal/render"
	"dualsight/internal/rig"
	"dualsight/internal/storage"
)

// ErrorResponse はエラー時のレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleResponse はデバイスを開いた結果
type HandleResponse struct {
	Handle  camera.Handle   `json:"handle"`
	Notices []config.Notice `json:"notices,omitempty"`
}

// ParameterRequest はパラメータ設定のリクエスト
type ParameterRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// ParameterResponse はパラメータの値
type ParameterResponse struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// PaletteRequest は疑似カラー設定のリクエスト。省略した項目は変更しない
type PaletteRequest struct {
	Enabled *bool `json:"enabled"`
	ID      *int  `json:"id"`
}

// OpenRequest は可視光カメラを開くリクエスト
type OpenRequest struct {
	Index int `json:"index"`
}

// CaptureRequest はキャプチャのリクエスト
type CaptureRequest struct {
	Dir   string         `json:"dir"`
	Flags *storage.Flags `json:"flags"`
}

// CaptureResponse はキャプチャの結果。一部失敗した出力はFailedに入る
type CaptureResponse struct {
	*capture.Result
	Failed  map[storage.Output]string `json:"failed,omitempty"`
	Notices []config.Notice           `json:"notices,omitempty"` // 保存先を既定値に戻した場合
}

// RenderRequest は温度行列の一括変換のリクエスト
type RenderRequest struct {
	Dir     string `json:"dir"`
	Palette string `json:"palette"`
}

// RenderResponse は一括変換の結果
type RenderResponse struct {
	Rendered []string          `json:"rendered"`
	Failed   map[string]string `json:"failed,omitempty"`
	Notices  []config.Notice   `json:"notices,omitempty"`
}

// StoreResponse は保存設定の更新結果
type StoreResponse struct {
	Store   config.StoreConfig `json:"store"`
	Notices []config.Notice    `json:"notices,omitempty"`
}

// handleHealth はヘルスチェックを返す
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Timestamp: time.Now()})
}

// handleStatus は両センサーの状態を返す
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.rig.Status())
}

// handleDevices は接続されたデバイスの一覧を返す
func (s *Server) handleDevices(c *gin.Context) {
	devices, err := s.rig.Devices(c.Request.Context())
	if err != nil && len(devices) == 0 {
		s.respondError(c, err)
		return
	}
	if devices == nil {
		devices = []camera.DeviceDescriptor{}
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

func (s *Server) handleVisibleOpen(c *gin.Context) {
	var req OpenRequest
	if !s.bindOptional(c, &req) {
		return
	}

	h, err := s.rig.OpenVisible(c.Request.Context(), req.Index)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HandleResponse{Handle: h})
}

func (s *Server) handleVisibleClose(c *gin.Context) {
	if err := s.rig.CloseVisible(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleInfraredLogin(c *gin.Context) {
	var req rig.LoginRequest
	if !s.bindOptional(c, &req) {
		return
	}

	h, notices, err := s.rig.LoginInfrared(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HandleResponse{Handle: h, Notices: notices})
}

func (s *Server) handleInfraredLogout(c *gin.Context) {
	if err := s.rig.LogoutInfrared(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// previewStart はプレビュー配信を開始するハンドラーを返す
func (s *Server) previewStart(kind camera.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.rig.StartPreview(c.Request.Context(), kind); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, s.rig.Status())
	}
}

// previewStop はプレビュー配信を停止するハンドラーを返す
func (s *Server) previewStop(kind camera.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.rig.StopPreview(c.Request.Context(), kind); err != nil {
			s.respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) getParameter(kind camera.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		v, err := s.rig.GetParameter(kind, name)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ParameterResponse{Name: name, Value: v})
	}
}

func (s *Server) setParameter(kind camera.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ParameterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondBadRequest(c, err)
			return
		}

		name := c.Param("name")
		if err := s.rig.SetParameter(kind, name, *req.Value); err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ParameterResponse{Name: name, Value: *req.Value})
	}
}

func (s *Server) handlePalette(c *gin.Context) {
	var req PaletteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBadRequest(c, err)
		return
	}
	if err := s.rig.SetPalette(req.Enabled, req.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAutofocus(c *gin.Context) {
	if err := s.rig.Autofocus(); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleShutter(c *gin.Context) {
	if err := s.rig.Shutter(); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleCapture は有効なセンサーのスナップショットを保存する
//
// 一部の出力だけが失敗した場合は207で成功分と失敗分を返す。
func (s *Server) handleCapture(c *gin.Context) {
	var req CaptureRequest
	if !s.bindOptional(c, &req) {
		return
	}

	var notices []config.Notice
	if req.Dir != "" {
		req.Dir, notices = s.rig.ResolveDir(req.Dir)
	}

	res, err := s.rig.Capture(c.Request.Context(), rig.CaptureOptions{Dir: req.Dir, Flags: req.Flags})
	if err != nil && (res == nil || !errors.Is(err, camera.ErrPartialCapture)) {
		s.respondError(c, err)
		return
	}

	resp := CaptureResponse{Result: res, Notices: notices}
	if len(res.Failed) > 0 {
		resp.Failed = make(map[storage.Output]string, len(res.Failed))
		for o, ferr := range res.Failed {
			resp.Failed[o] = ferr.Error()
		}
		c.JSON(http.StatusMultiStatus, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleRender は保存先の温度行列を疑似カラー画像に一括変換する
func (s *Server) handleRender(c *gin.Context) {
	var req RenderRequest
	if !s.bindOptional(c, &req) {
		return
	}

	palette, err := render.ParsePalette(req.Palette)
	if err != nil {
		s.respondBadRequest(c, err)
		return
	}

	cfg := s.rig.Config()
	dir, notices := s.rig.ResolveDir(req.Dir)
	opts := render.Options{Palette: palette, Quality: cfg.Store.Quality}
	if res := s.rig.Status().Infrared.Resolution; res != nil {
		opts.Resolution = *res
	}

	renderer := render.NewRenderer(s.fs, opts, s.logger)
	summary, err := renderer.Directory(c.Request.Context(), dir, nil)
	if summary == nil {
		s.respondError(c, err)
		return
	}

	resp := RenderResponse{Rendered: summary.Rendered, Notices: notices}
	if resp.Rendered == nil {
		resp.Rendered = []string{}
	}
	if len(summary.Failed) > 0 {
		resp.Failed = make(map[string]string, len(summary.Failed))
		for src, ferr := range summary.Failed {
			resp.Failed[src] = ferr.Error()
		}
		c.JSON(http.StatusMultiStatus, resp)
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.rig.Config())
}

func (s *Server) handleUpdateStore(c *gin.Context) {
	store := s.rig.Config().Store
	if err := c.ShouldBindJSON(&store); err != nil {
		s.respondBadRequest(c, err)
		return
	}

	notices := s.rig.UpdateStore(store)
	c.JSON(http.StatusOK, StoreResponse{Store: s.rig.Config().Store, Notices: notices})
}

func (s *Server) handleResetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.rig.ResetConfig())
}

// ヘルパー関数

// bindOptional は空のボディを許容してJSONを読み込む。失敗時はレスポンス済み
func (s *Server) bindOptional(c *gin.Context, v any) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		s.respondBadRequest(c, err)
		return false
	}
	return true
}

// statusFromError はエラー種別をHTTPステータスに変換する
func statusFromError(err error) int {
	// PartialErrorは内側の失敗種別も返すため先に判定する
	if errors.Is(err, camera.ErrPartialCapture) {
		return http.StatusMultiStatus
	}

	kind, ok := camera.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case camera.ErrInvalidParameter:
		return http.StatusBadRequest
	case camera.ErrDeviceNotFound:
		return http.StatusNotFound
	case camera.ErrLoginFailed:
		return http.StatusUnauthorized
	case camera.ErrInvalidState, camera.ErrCaptureBusy:
		return http.StatusConflict
	case camera.ErrNothingToCapture:
		return http.StatusUnprocessableEntity
	case camera.ErrStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode はレスポンスのerrorフィールドに入れる識別子を返す
func errorCode(err error) string {
	if errors.Is(err, camera.ErrPartialCapture) {
		return string(camera.ErrPartialCapture)
	}
	if kind, ok := camera.KindOf(err); ok {
		return string(kind)
	}
	return "internal_error"
}

func (s *Server) respondError(c *gin.Context, err error) {
	resp := ErrorResponse{
		Error:     errorCode(err),
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
	if code, ok := camera.VendorCode(err); ok {
		resp.Details = stringPtr(fmt.Sprintf("vendor code 0x%08X", code))
	}
	c.JSON(statusFromError(err), resp)
}

func (s *Server) respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     string(camera.ErrInvalidParameter),
		Message:   "リクエストの形式が不正です",
		Details:   stringPtr(err.Error()),
		Timestamp: time.Now(),
	})
}

// stringPtr は文字列のポインタを返すヘルパー関数
func stringPtr(s string) *string {
	return &s
}
