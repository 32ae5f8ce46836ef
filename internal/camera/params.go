package camera

import (
	"fmt"
	"math"
)

// パラメータ名
const (
	ParamExposure       = "exposure"        // 露光時間 (µs)
	ParamGain           = "gain"            // ゲイン (dB)
	ParamFrameRate      = "frame_rate"      // フレームレート (fps)
	ParamPalette        = "palette"         // カラーバー番号
	ParamPaletteEnabled = "palette_enabled" // 疑似カラー表示 (0/1)
)

// ParamRange はパラメータの許容範囲
type ParamRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Integer bool    `json:"integer"` // 整数値のみ許可
}

// Check は値が範囲内か検証する
func (r ParamRange) Check(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrInvalidParameter, name, value)
	}
	if value < r.Min || value > r.Max {
		return fmt.Errorf("%w: %s=%v は範囲 [%v, %v] の外です", ErrInvalidParameter, name, value, r.Min, r.Max)
	}
	if r.Integer && value != math.Trunc(value) {
		return fmt.Errorf("%w: %s=%v は整数である必要があります", ErrInvalidParameter, name, value)
	}
	return nil
}

// PaletteCount はカラーバーの数
const PaletteCount = 12

var (
	visibleRanges = map[string]ParamRange{
		ParamExposure:  {Min: 15, Max: 20000},
		ParamGain:      {Min: 0, Max: 17},
		ParamFrameRate: {Min: 0.1, Max: 80},
	}

	infraredRanges = map[string]ParamRange{
		ParamPalette:        {Min: 1, Max: PaletteCount, Integer: true},
		ParamPaletteEnabled: {Min: 0, Max: 1, Integer: true},
	}

	// 可視光SDKのノード名
	visibleNodes = map[string]string{
		ParamExposure:  "ExposureTime",
		ParamGain:      "Gain",
		ParamFrameRate: "AcquisitionFrameRate",
	}
)

// RangeOf は指定センサーのパラメータ範囲を返す
func RangeOf(kind Kind, name string) (ParamRange, bool) {
	var r ParamRange
	var ok bool
	switch kind {
	case KindVisible:
		r, ok = visibleRanges[name]
	case KindInfrared:
		r, ok = infraredRanges[name]
	}
	return r, ok
}

// ValidateParameter はパラメータ名と値を検証する
func ValidateParameter(kind Kind, name string, value float64) error {
	r, ok := RangeOf(kind, name)
	if !ok {
		return fmt.Errorf("%w: %s には %q というパラメータはありません", ErrInvalidParameter, kind, name)
	}
	return r.Check(name, value)
}
