package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Kind はセンサーの種類を表す
type Kind string

const (
	KindVisible  Kind = "visible"  // 可視光カメラ
	KindInfrared Kind = "infrared" // 赤外線（サーマル）カメラ
)

// ParseKind は文字列をKindに変換する
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindVisible, KindInfrared:
		return Kind(s), true
	}
	return "", false
}

// State はデバイスハンドルのライフサイクル状態を表す
type State string

const (
	StateLoggedOut State = "logged_out" // 赤外線: 未ログイン
	StateLoggingIn State = "logging_in" // 赤外線: ログイン処理中
	StateLoggedIn  State = "logged_in"  // 赤外線: ログイン済み
	StateClosed    State = "closed"     // 可視光: 未オープン
	StateOpened    State = "opened"     // オープン済み
	StateStreaming State = "streaming"  // フレーム配信中
)

// Handle はアダプターが所有するデバイスハンドル
type Handle struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}

// IsZero はハンドルが未設定かを返す
func (h Handle) IsZero() bool { return h.ID == "" }

// DeviceDescriptor は列挙されたデバイスの情報
type DeviceDescriptor struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Index     int    `json:"index"`               // SDK上の列挙インデックス
	Name      string `json:"name"`                // 表示名
	Model     string `json:"model,omitempty"`     // 型番
	Serial    string `json:"serial,omitempty"`    // シリアル番号
	Transport string `json:"transport,omitempty"` // GigE, USB など
	Address   string `json:"address,omitempty"`   // IPアドレスまたはホスト名
}

// Resolution はセンサーの解像度を表す
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Pixels は画素数を返す
func (r Resolution) Pixels() int { return r.Width * r.Height }

// PixelFormat はフレームの画素形式
type PixelFormat string

const (
	PixelRGB8  PixelFormat = "rgb8"
	PixelBGR8  PixelFormat = "bgr8"
	PixelMono8 PixelFormat = "mono8"
	PixelJPEG  PixelFormat = "jpeg"
)

// Frame はデコード済みの1フレーム
//
// Dataはアダプターがコピーした所有バッファであり、配信後は変更しない。
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
	Seq       uint64
}

// Image はフレームをimage.Imageに変換する
func (f Frame) Image() (image.Image, error) {
	if f.Format == PixelJPEG {
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("JPEGのデコードに失敗: %w", err)
		}
		return img, nil
	}

	bpp := 3
	if f.Format == PixelMono8 {
		bpp = 1
	}
	if f.Width <= 0 || f.Height <= 0 || len(f.Data) < f.Width*f.Height*bpp {
		return nil, fmt.Errorf("フレームサイズが不正です: %dx%d %s (%d bytes)", f.Width, f.Height, f.Format, len(f.Data))
	}

	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case PixelMono8:
		gray := image.NewGray(rect)
		copy(gray.Pix, f.Data[:f.Width*f.Height])
		return gray, nil
	case PixelRGB8, PixelBGR8:
		rgba := image.NewRGBA(rect)
		for i, j := 0, 0; i < f.Width*f.Height; i, j = i+1, j+3 {
			r, g, b := f.Data[j], f.Data[j+1], f.Data[j+2]
			if f.Format == PixelBGR8 {
				r, b = b, r
			}
			p := rgba.Pix[i*4 : i*4+4]
			p[0], p[1], p[2], p[3] = r, g, b, 0xff
		}
		return rgba, nil
	default:
		return nil, fmt.Errorf("未対応の画素形式: %s", f.Format)
	}
}

// TemperatureMatrix は1フレーム分の画素ごとの温度（行優先）
type TemperatureMatrix struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float32 `json:"values"`
}

// CheckResolution は値の数が解像度と一致するか検証する
func (m TemperatureMatrix) CheckResolution(res Resolution) error {
	if res.Pixels() <= 0 || len(m.Values) != res.Pixels() {
		return fmt.Errorf("%w: %d 個の値, 解像度 %dx%d", ErrResolutionMismatch, len(m.Values), res.Width, res.Height)
	}
	return nil
}

// FrameSink はアダプターからのフレーム配信を受け取る
//
// 呼び出しはSDKが所有するゴルーチンから行われる。実装は短時間で戻ること。
type FrameSink interface {
	OnFrame(frame Frame)
	OnError(err error)
}

// Adapter はベンダーSDKを共通の機能インターフェースで包む
type Adapter interface {
	// Kind はセンサーの種類を返す
	Kind() Kind

	// Enumerate は接続可能なデバイスを列挙する
	Enumerate(ctx context.Context) ([]DeviceDescriptor, error)

	// Open はデバイスを開いてハンドルを返す
	Open(ctx context.Context, desc DeviceDescriptor) (Handle, error)

	// Close はデバイスを閉じる。配信中なら先に停止する
	Close(h Handle) error

	// State はハンドルの現在の状態を返す
	State(h Handle) State

	// IsStreaming は配信中かを返す
	IsStreaming(h Handle) bool

	// SetParameter はパラメータを範囲検証してから設定する
	SetParameter(h Handle, name string, value float64) error

	// GetParameter はパラメータの現在値を取得する
	GetParameter(h Handle, name string) (float64, error)

	// StartStream はフレーム配信を開始する
	StartStream(h Handle, sink FrameSink) error

	// StopStream はフレーム配信を停止する。配信中でなければ何もしない
	StopStream(h Handle) error

	// Shutdown は全てのハンドルを解放する
	Shutdown() error
}

// LoginParams は赤外線カメラへのログイン情報
type LoginParams struct {
	Server   string
	Port     int
	User     string
	Password string
}

// ThermalAdapter は赤外線カメラ固有の機能を追加したAdapter
type ThermalAdapter interface {
	Adapter

	// Login はカメラにログインしてハンドルを返す
	Login(ctx context.Context, p LoginParams) (Handle, error)

	// Logout はログアウトしてハンドルを解放する。開いていれば先に閉じる
	Logout(h Handle) error

	// SetPaletteEnabled は疑似カラー表示の有効・無効を切り替える
	SetPaletteEnabled(h Handle, enabled bool) error

	// SetPaletteTable は疑似カラーのカラーバーを切り替える
	SetPaletteTable(h Handle, id int) error

	// TriggerAutofocus はオートフォーカスを実行する
	TriggerAutofocus(h Handle) error

	// DoShutter はシャッター補正を実行する
	DoShutter(h Handle) error

	// ReadTemperatureMatrix は現在の温度行列を読み出す
	ReadTemperatureMatrix(h Handle) (TemperatureMatrix, error)

	// Resolution はログイン時に取得したセンサー解像度を返す
	Resolution(h Handle) (Resolution, error)
}
