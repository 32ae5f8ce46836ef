// Package storage はキャプチャ結果をファイルとして保存する
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"dualsight/internal/camera"
)

// TimestampLayout はファイル名に使うタイムスタンプの書式 (YYYYMMDDHHMMSS)
const TimestampLayout = "20060102150405"

// DefaultQuality はJPEGの既定品質
const DefaultQuality = 95

// Output は保存する出力の種類
type Output string

const (
	OutputVisible     Output = "rgb"  // 可視光画像
	OutputInfrared    Output = "ir"   // 赤外線の疑似カラー画像
	OutputTemperature Output = "temp" // 温度行列
)

// Outputs は全ての出力を保存順に並べたもの
var Outputs = []Output{OutputVisible, OutputInfrared, OutputTemperature}

// Suffix はファイル名の接尾辞を返す
func (o Output) Suffix() string {
	switch o {
	case OutputVisible:
		return "_rgb.jpg"
	case OutputInfrared:
		return "_ir.jpg"
	default:
		return "_temp.json"
	}
}

// FileName はタイムスタンプと出力種別からファイル名を作る
func FileName(ts time.Time, o Output) string {
	return ts.Format(TimestampLayout) + o.Suffix()
}

// Flags は出力ごとの保存要否
type Flags struct {
	SaveVisible     bool `json:"save_visible"`
	SaveInfrared    bool `json:"save_infrared"`
	SaveTemperature bool `json:"save_temperature"`
}

// Wants は出力を保存するかを返す
func (f Flags) Wants(o Output) bool {
	switch o {
	case OutputVisible:
		return f.SaveVisible
	case OutputInfrared:
		return f.SaveInfrared
	case OutputTemperature:
		return f.SaveTemperature
	}
	return false
}

// Snapshot は1回のキャプチャで得られたデータ
//
// nilのフィールドは該当センサーが無効だったことを表す。
type Snapshot struct {
	Timestamp   time.Time
	Visible     *camera.Frame
	Infrared    *camera.Frame
	Temperature *camera.TemperatureMatrix
	Resolution  camera.Resolution // 温度行列の長さ検証に使う赤外線の解像度
}

func (s Snapshot) has(o Output) bool {
	switch o {
	case OutputVisible:
		return s.Visible != nil
	case OutputInfrared:
		return s.Infrared != nil
	case OutputTemperature:
		return s.Temperature != nil
	}
	return false
}

// Report は保存結果
type Report struct {
	Timestamp string            `json:"timestamp"`
	Written   map[Output]string `json:"written"`
	Failed    map[Output]error  `json:"-"`
}

// Paths は書き込んだファイルのパスを出力順に返す
func (r *Report) Paths() []string {
	paths := make([]string, 0, len(r.Written))
	for _, o := range Outputs {
		if p, ok := r.Written[o]; ok {
			paths = append(paths, p)
		}
	}
	return paths
}

// FailedOutputs は失敗した出力を名前順に返す
func (r *Report) FailedOutputs() []Output {
	outs := make([]Output, 0, len(r.Failed))
	for o := range r.Failed {
		outs = append(outs, o)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i] < outs[j] })
	return outs
}

// Manager はスナップショットをファイルシステムに書き出す
type Manager struct {
	fs      afero.Fs
	quality int
	logger  zerolog.Logger
}

// NewManager は新しいManagerを作成する
func NewManager(fs afero.Fs, quality int, logger zerolog.Logger) *Manager {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Manager{fs: fs, quality: quality, logger: logger}
}

// Fs は書き込み先のファイルシステムを返す
func (m *Manager) Fs() afero.Fs { return m.fs }

// Persist はフラグで要求され、かつデータのある出力を dir に書き込む
//
// 各ファイルは独立して書き込まれ、一つの失敗が他を妨げることはない。
// 失敗があった場合はReport.Failedに記録し、全ての失敗をまとめたエラーを返す。
func (m *Manager) Persist(ctx context.Context, snap Snapshot, flags Flags, dir string) (*Report, error) {
	report := &Report{
		Timestamp: snap.Timestamp.Format(TimestampLayout),
		Written:   make(map[Output]string),
		Failed:    make(map[Output]error),
	}

	if dir == "" {
		return report, camera.NewOpError(camera.ErrStorageUnavailable, "", "persist", errors.New("保存先が指定されていません"))
	}
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return report, camera.NewOpError(camera.ErrStorageUnavailable, "", "persist", fmt.Errorf("保存先ディレクトリの作成に失敗: %w", err))
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, o := range Outputs {
		if !flags.Wants(o) || !snap.has(o) {
			continue
		}
		g.Go(func() error {
			path := filepath.Join(dir, FileName(snap.Timestamp, o))
			err := m.write(ctx, snap, o, path)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[o] = err
				m.logger.Error().Err(err).Str("output", string(o)).Str("path", path).Msg("ファイルの保存に失敗")
				return err
			}
			report.Written[o] = path
			m.logger.Debug().Str("output", string(o)).Str("path", path).Msg("ファイルを保存しました")
			return nil
		})
	}
	_ = g.Wait()

	if len(report.Failed) > 0 {
		errs := make([]error, 0, len(report.Failed))
		for _, o := range report.FailedOutputs() {
			errs = append(errs, fmt.Errorf("%s: %w", o, report.Failed[o]))
		}
		return report, errors.Join(errs...)
	}
	return report, nil
}

// write は1つの出力をエンコードして書き込む
func (m *Manager) write(ctx context.Context, snap Snapshot, o Output, path string) error {
	if err := ctx.Err(); err != nil {
		return camera.NewOpError(camera.ErrStorageUnavailable, "", "persist", err)
	}

	switch o {
	case OutputVisible:
		return m.writeFrame(*snap.Visible, camera.KindVisible, path)
	case OutputInfrared:
		return m.writeFrame(*snap.Infrared, camera.KindInfrared, path)
	default:
		return m.writeTemperature(*snap.Temperature, snap.Resolution, path)
	}
}

func (m *Manager) writeFrame(f camera.Frame, sensor camera.Kind, path string) error {
	if f.Format == camera.PixelJPEG {
		return m.atomicWrite(sensor, path, func(w io.Writer) error {
			_, err := w.Write(f.Data)
			return err
		})
	}

	img, err := f.Image()
	if err != nil {
		return camera.NewOpError(camera.ErrResolutionMismatch, sensor, "encode_image", err)
	}
	return m.atomicWrite(sensor, path, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: m.quality})
	})
}

// writeTemperature は温度行列をフラットなJSON配列として書き込む
//
// 長さが解像度と一致しない場合はファイルを作らない。
func (m *Manager) writeTemperature(t camera.TemperatureMatrix, res camera.Resolution, path string) error {
	if res.Pixels() == 0 {
		res = camera.Resolution{Width: t.Width, Height: t.Height}
	}
	if err := t.CheckResolution(res); err != nil {
		return camera.NewOpError(camera.ErrResolutionMismatch, camera.KindInfrared, "write_temperature", err)
	}

	return m.atomicWrite(camera.KindInfrared, path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(t.Values)
	})
}

// atomicWrite は一時ファイルに書き込んでからリネームする
func (m *Manager) atomicWrite(sensor camera.Kind, path string, encode func(io.Writer) error) (err error) {
	fail := func(err error) error {
		return camera.NewOpError(camera.ErrStorageUnavailable, sensor, "write", fmt.Errorf("%s: %w", path, err))
	}

	tmp, err := afero.TempFile(m.fs, filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err != nil {
			_ = m.fs.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := encode(bw); err != nil {
		_ = tmp.Close()
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := m.fs.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	return nil
}
