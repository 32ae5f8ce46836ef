package camera

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// reportError はOpErrorを作成してログに記録する
func reportError(logger zerolog.Logger, kind ErrorKind, sensor Kind, op string, err error) *OpError {
	opErr := NewOpError(kind, sensor, op, err)

	ev := logger.Error()
	if kind == ErrInvalidState || kind == ErrInvalidParameter {
		ev = logger.Warn()
	}
	ev.EmbedObject(opErr).Msg("センサー操作に失敗")

	return opErr
}

// newFrameCallback はSDKのコールバックをFrameSinkへの配信に変換する
//
// SDKのバッファは戻り後に再利用されるため、ここでコピーしてから渡す。
func newFrameCallback(sensor Kind, sink FrameSink, seq *atomic.Uint64) FrameCallback {
	return func(raw RawFrame, err error) {
		if err != nil {
			sink.OnError(NewOpError(ErrDeviceFailure, sensor, "deliver", err))
			return
		}

		data := make([]byte, len(raw.Data))
		copy(data, raw.Data)

		sink.OnFrame(Frame{
			Data:      data,
			Width:     raw.Width,
			Height:    raw.Height,
			Format:    raw.Format,
			Timestamp: time.Now(),
			Seq:       seq.Add(1),
		})
	}
}
