package server

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dualsight/internal/camera"
	"dualsight/internal/stream"
)

// previewQuality はプレビュー用JPEGの品質
const previewQuality = 80

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// previewBuffer はパスのkindに対応する配信中のFrameBufferと、配信の停止で閉じるチャンネルを返す。
// 失敗時はレスポンス済み
func (s *Server) previewBuffer(c *gin.Context) (*stream.FrameBuffer, <-chan struct{}, bool) {
	kind, ok := camera.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     string(camera.ErrDeviceNotFound),
			Message:   "指定されたセンサーが見つかりません",
			Timestamp: time.Now(),
		})
		return nil, nil, false
	}

	buf, err := s.rig.Buffer(kind)
	if err != nil {
		s.respondError(c, err)
		return nil, nil, false
	}

	// 状態の確認より先に取得し、確認後の停止を取りこぼさない
	done := buf.Done()

	status := s.rig.Status()
	sensor := status.Visible
	if kind == camera.KindInfrared {
		sensor = status.Infrared
	}
	if sensor.Stream.Status == stream.StatusIdle {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "stream_not_active",
			Message:   "プレビューが開始されていません",
			Timestamp: time.Now(),
		})
		return nil, nil, false
	}
	return buf, done, true
}

// encodeFrame はフレームをJPEGに変換する。JPEGで届いたフレームはそのまま返す
func encodeFrame(f camera.Frame) ([]byte, error) {
	if f.Format == camera.PixelJPEG {
		return f.Data, nil
	}
	img, err := f.Image()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewQuality}); err != nil {
		return nil, fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// handleStream はMJPEGでプレビューを配信する
func (s *Server) handleStream(c *gin.Context) {
	buf, done, ok := s.previewBuffer(c)
	if !ok {
		return
	}

	notify, cancel := buf.Subscribe()
	defer cancel()

	// MJPEGストリーミングのヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			// クライアントの切断またはサーバーの停止
			return
		case <-done:
			s.logger.Debug().Str("kind", string(buf.Kind())).Msg("配信が停止したためMJPEGストリームを終了します")
			return
		case <-notify:
			frame, ok := buf.Latest()
			if !ok || frame.Seq == lastSeq {
				continue
			}
			lastSeq = frame.Seq

			data, err := encodeFrame(frame)
			if err != nil {
				s.logger.Warn().Err(err).Str("kind", string(buf.Kind())).Msg("プレビューのエンコードに失敗")
				continue
			}

			if _, err := c.Writer.Write([]byte("--frame\r\n")); err != nil {
				return
			}
			if _, err := c.Writer.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
				return
			}
			if _, err := c.Writer.Write(data); err != nil {
				return
			}
			if _, err := c.Writer.Write([]byte("\r\n")); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// handleWebSocket はWebSocketでJPEGフレームをバイナリメッセージとして配信する
func (s *Server) handleWebSocket(c *gin.Context) {
	buf, done, ok := s.previewBuffer(c)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocketへの切り替えに失敗")
		return
	}
	defer func() { _ = conn.Close() }()

	// 書き込みはこのゴルーチンからのみ行う
	write := func(messageType int, payload []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(messageType, payload)
	}

	// 受信側は切断とpongの検出のみ行う
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	notify, cancel := buf.Subscribe()
	defer cancel()

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	logger := s.logger.With().Str("kind", string(buf.Kind())).Logger()
	logger.Debug().Msg("WebSocketクライアントが接続しました")
	defer logger.Debug().Msg("WebSocketクライアントが切断しました")

	var lastSeq uint64
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			return
		case <-done:
			_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream stopped"))
			return
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-notify:
			frame, ok := buf.Latest()
			if !ok || frame.Seq == lastSeq {
				continue
			}
			lastSeq = frame.Seq

			data, err := encodeFrame(frame)
			if err != nil {
				logger.Warn().Err(err).Msg("プレビューのエンコードに失敗")
				continue
			}
			if err := write(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}
}
