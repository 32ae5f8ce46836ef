package render

import (
	"fmt"
	"image/color"
)

// Palette は温度を色に対応付けるカラーマップ
type Palette string

const (
	PaletteGray    Palette = "gray"
	PaletteIron    Palette = "iron"
	PaletteRainbow Palette = "rainbow"
)

// ParsePalette は名前からPaletteを返す。空なら gray
func ParsePalette(name string) (Palette, error) {
	switch p := Palette(name); p {
	case "":
		return PaletteGray, nil
	case PaletteGray, PaletteIron, PaletteRainbow:
		return p, nil
	}
	return "", fmt.Errorf("未知のカラーマップ: %q", name)
}

// 各カラーマップの基準色。間は線形補間する
var paletteStops = map[Palette][]color.RGBA{
	PaletteGray: {
		{0, 0, 0, 255},
		{255, 255, 255, 255},
	},
	PaletteIron: {
		{0, 0, 0, 255},
		{32, 0, 140, 255},
		{204, 0, 119, 255},
		{255, 165, 0, 255},
		{255, 255, 255, 255},
	},
	PaletteRainbow: {
		{0, 0, 255, 255},
		{0, 255, 255, 255},
		{0, 255, 0, 255},
		{255, 255, 0, 255},
		{255, 0, 0, 255},
	},
}

var lookupTables = func() map[Palette]*[256]color.RGBA {
	tables := make(map[Palette]*[256]color.RGBA, len(paletteStops))
	for p, stops := range paletteStops {
		tables[p] = buildLUT(stops)
	}
	return tables
}()

func buildLUT(stops []color.RGBA) *[256]color.RGBA {
	var lut [256]color.RGBA
	segments := len(stops) - 1
	for i := range lut {
		pos := float64(i) / 255 * float64(segments)
		seg := min(int(pos), segments-1)
		t := pos - float64(seg)
		a, b := stops[seg], stops[seg+1]
		lut[i] = color.RGBA{
			R: lerp(a.R, b.R, t),
			G: lerp(a.G, b.G, t),
			B: lerp(a.B, b.B, t),
			A: 255,
		}
	}
	return &lut
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

// Color は0..255の強度に対応する色を返す
func (p Palette) Color(v uint8) color.RGBA {
	lut, ok := lookupTables[p]
	if !ok {
		lut = lookupTables[PaletteGray]
	}
	return lut[v]
}
