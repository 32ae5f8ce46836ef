package camera

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrorKind は操作失敗の種別を表す
//
// ErrorKind自体がerrorを実装するため、errors.Is(err, ErrInvalidState) のように
// 種別で判定できる。
type ErrorKind string

const (
	ErrInvalidState       ErrorKind = "invalid_state"       // 現在の状態では許可されない遷移
	ErrInvalidParameter   ErrorKind = "invalid_parameter"   // 範囲外または未知のパラメータ
	ErrDeviceNotFound     ErrorKind = "device_not_found"    // デバイスが存在しない・開けない
	ErrLoginFailed        ErrorKind = "login_failed"        // 赤外線カメラへのログイン失敗
	ErrStreamStartFailed  ErrorKind = "stream_start_failed" // ストリーミング開始失敗
	ErrResolutionMismatch ErrorKind = "resolution_mismatch" // 温度行列の長さが解像度と一致しない
	ErrNothingToCapture   ErrorKind = "nothing_to_capture"  // 保存対象のセンサーが一つも有効でない
	ErrCaptureBusy        ErrorKind = "capture_busy"        // 別のキャプチャが実行中
	ErrStorageUnavailable ErrorKind = "storage_unavailable" // 保存先の作成・書き込みに失敗
	ErrPartialCapture     ErrorKind = "partial_capture"     // 一部の出力のみ失敗
	ErrDeviceFailure      ErrorKind = "device_failure"      // 上記以外のSDK呼び出し失敗
)

func (k ErrorKind) Error() string { return string(k) }

// OpError はセンサー操作の失敗を表す
type OpError struct {
	Kind   ErrorKind
	Sensor Kind   // visible / infrared
	Op     string // 失敗した操作名
	Err    error  // 原因（VendorErrorなど）、nilの場合もある
}

// NewOpError は新しいOpErrorを作成する
func NewOpError(kind ErrorKind, sensor Kind, op string, err error) *OpError {
	return &OpError{Kind: kind, Sensor: sensor, Op: op, Err: err}
}

func (e *OpError) Error() string {
	prefix := e.Op
	if e.Sensor != "" {
		prefix = string(e.Sensor) + " " + e.Op
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", prefix, e.Kind, e.Err)
}

// Unwrap は種別と原因の両方を返す
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MarshalZerologObject はログ出力用のフィールドを書き込む
func (e *OpError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("sensor", string(e.Sensor)).
		Str("op", e.Op).
		Str("kind", string(e.Kind))
	if code, ok := VendorCode(e); ok {
		ev.Str("code", fmt.Sprintf("0x%08x", code))
	}
	if e.Err != nil {
		ev.AnErr("cause", e.Err)
	}
}

// KindOf はエラーからErrorKindを取り出す
func KindOf(err error) (ErrorKind, bool) {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind, true
	}
	var kind ErrorKind
	if errors.As(err, &kind) {
		return kind, true
	}
	return "", false
}

// VendorError はベンダーSDKが返したステータスコード
type VendorError struct {
	Call string // SDK関数名
	Code uint32 // ステータスコード
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%s がステータス 0x%08x を返しました", e.Call, e.Code)
}

// VendorCode はエラーチェーン中のベンダーステータスコードを返す
func VendorCode(err error) (uint32, bool) {
	var vErr *VendorError
	if errors.As(err, &vErr) {
		return vErr.Code, true
	}
	return 0, false
}
