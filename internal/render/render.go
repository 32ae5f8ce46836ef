// Package render は保存済みの温度行列を疑似カラー画像に変換する
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"dualsight/internal/camera"
	"dualsight/internal/storage"
)

// Options は変換の設定
type Options struct {
	Resolution camera.Resolution // 温度行列の解像度
	Palette    Palette
	Quality    int // JPEG品質
	Workers    int // Directoryの並列数
}

// DefaultOptions はデフォルトの設定を返す
func DefaultOptions() Options {
	return Options{
		Resolution: camera.DefaultInfraredResolution,
		Palette:    PaletteGray,
		Quality:    storage.DefaultQuality,
		Workers:    4,
	}
}

// Progress は1ファイル処理するごとに呼ばれる
type Progress func(done, total int, path string)

// Summary はディレクトリ一括変換の結果
type Summary struct {
	Rendered []string         `json:"rendered"`
	Failed   map[string]error `json:"-"`
}

// Renderer は温度行列のJSONを画像に変換する
type Renderer struct {
	fs     afero.Fs
	opts   Options
	logger zerolog.Logger
}

// NewRenderer は新しいRendererを作成する
func NewRenderer(fs afero.Fs, opts Options, logger zerolog.Logger) *Renderer {
	def := DefaultOptions()
	if opts.Resolution.Pixels() <= 0 {
		opts.Resolution = def.Resolution
	}
	if opts.Palette == "" {
		opts.Palette = def.Palette
	}
	if opts.Quality < 1 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.Workers < 1 {
		opts.Workers = def.Workers
	}
	return &Renderer{fs: fs, opts: opts, logger: logger}
}

// OutputPath は温度行列ファイルに対応する画像のパスを返す
func OutputPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".jpg"
}

// Load は温度行列を読み込み、解像度と一致するか検証する
func (r *Renderer) Load(path string) (camera.TemperatureMatrix, error) {
	raw, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return camera.TemperatureMatrix{}, fmt.Errorf("温度行列の読み込みに失敗: %w", err)
	}

	var values []float32
	if err := json.Unmarshal(raw, &values); err != nil {
		return camera.TemperatureMatrix{}, fmt.Errorf("温度行列の解析に失敗: %w", err)
	}

	m := camera.TemperatureMatrix{Width: r.opts.Resolution.Width, Height: r.opts.Resolution.Height, Values: values}
	if err := m.CheckResolution(r.opts.Resolution); err != nil {
		return camera.TemperatureMatrix{}, err
	}
	return m, nil
}

// Image は温度行列を最小・最大で正規化してカラーマップを適用する
func (r *Renderer) Image(m camera.TemperatureMatrix) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	if len(m.Values) == 0 {
		return img
	}

	lo, hi := m.Values[0], m.Values[0]
	for _, v := range m.Values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := float64(hi - lo)

	for i, v := range m.Values {
		var level uint8
		if span > 0 {
			level = uint8(float64(v-lo) / span * 255)
		}
		c := r.opts.Palette.Color(level)
		img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// File はsrcの温度行列を画像に変換してdstに書き出す。dstが空ならOutputPath(src)
func (r *Renderer) File(ctx context.Context, src, dst string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dst == "" {
		dst = OutputPath(src)
	}

	m, err := r.Load(src)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, r.Image(m), &jpeg.Options{Quality: r.opts.Quality}); err != nil {
		return "", fmt.Errorf("JPEG エンコードに失敗: %w", err)
	}
	if err := afero.WriteFile(r.fs, dst, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("画像の書き込みに失敗: %w", err)
	}

	r.logger.Debug().Str("src", src).Str("dst", dst).Msg("温度行列を画像に変換しました")
	return dst, nil
}

// Directory はdir直下の全ての温度行列を並列に変換する
//
// 個々の失敗は他のファイルの変換を止めず、Summary.Failedにまとめて返す。
func (r *Renderer) Directory(ctx context.Context, dir string, progress Progress) (*Summary, error) {
	sources, err := afero.Glob(r.fs, filepath.Join(dir, "*"+storage.OutputTemperature.Suffix()))
	if err != nil {
		return nil, fmt.Errorf("温度行列の検索に失敗: %w", err)
	}
	sort.Strings(sources)

	summary := &Summary{Failed: make(map[string]error)}
	if len(sources) == 0 {
		r.logger.Info().Str("dir", dir).Msg("変換対象の温度行列がありません")
		return summary, nil
	}

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, src := range sources {
		g.Go(func() error {
			dst, err := r.File(gctx, src, "")

			mu.Lock()
			defer mu.Unlock()

			done++
			if err != nil {
				summary.Failed[src] = err
				r.logger.Warn().Err(err).Str("src", src).Msg("温度行列の変換に失敗")
			} else {
				summary.Rendered = append(summary.Rendered, dst)
			}
			if progress != nil {
				progress(done, len(sources), src)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(summary.Rendered)

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	r.logger.Info().
		Str("dir", dir).
		Int("rendered", len(summary.Rendered)).
		Int("failed", len(summary.Failed)).
		Msg("温度行列の一括変換が完了しました")

	if len(summary.Failed) > 0 {
		errs := make([]error, 0, len(summary.Failed))
		for src, err := range summary.Failed {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(src), err))
		}
		return summary, errors.Join(errs...)
	}
	return summary, nil
}
