package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"dualsight/internal/camera"
	"dualsight/internal/storage"
)

// FrameSource はセンサーの最新フレームを提供する
type FrameSource interface {
	Active() bool
	Latest() (camera.Frame, bool)
}

// TemperatureSource は赤外線カメラの温度行列を提供する
type TemperatureSource interface {
	Active() bool
	ReadTemperatureMatrix() (camera.TemperatureMatrix, error)
	Resolution() (camera.Resolution, error)
}

// Sources はキャプチャ対象のセンサー群。nilのものは無効として扱う
type Sources struct {
	Visible     FrameSource
	Infrared    FrameSource
	Temperature TemperatureSource
}

// Persister はスナップショットを保存する
type Persister interface {
	Persist(ctx context.Context, snap storage.Snapshot, flags storage.Flags, dir string) (*storage.Report, error)
}

// Request は1回のキャプチャ要求
type Request struct {
	Dir       string        `json:"dir"`
	Flags     storage.Flags `json:"flags"`
	Timestamp time.Time     `json:"timestamp"` // ゼロ値なら現在時刻を割り当てる
}

// Result はキャプチャの結果
type Result struct {
	ID        string                    `json:"id"`
	Timestamp time.Time                 `json:"timestamp"`
	Written   map[storage.Output]string `json:"written"`
	Failed    map[storage.Output]error  `json:"-"`
	Skipped   []storage.Output          `json:"skipped"` // 要求されたがセンサーが無効だった出力
}

// PartialError は一部の出力が失敗したことを表す
//
// errors.Is(err, camera.ErrPartialCapture) で判定できる。
type PartialError struct {
	Failed map[storage.Output]error
}

func (e *PartialError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for o, err := range e.Failed {
		names = append(names, fmt.Sprintf("%s (%v)", o, err))
	}
	sort.Strings(names)
	return fmt.Sprintf("%s: %s", camera.ErrPartialCapture, strings.Join(names, ", "))
}

// Is はcamera.ErrPartialCaptureと一致する
func (e *PartialError) Is(target error) bool {
	return target == camera.ErrPartialCapture
}

// Unwrap は出力ごとのエラーを返す
func (e *PartialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// Coordinator は有効なセンサー全体から一貫したスナップショットを作る
type Coordinator struct {
	sources Sources
	store   Persister
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time

	sem      *semaphore.Weighted
	inFlight atomic.Bool
	last     time.Time // semを保持している間のみアクセスする
}

// NewCoordinator は新しいCoordinatorを作成する
func NewCoordinator(sources Sources, store Persister, cfg Config, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		sources: sources,
		store:   store,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		now:     time.Now,
		sem:     semaphore.NewWeighted(1),
	}
}

// InFlight はキャプチャ実行中かを返す
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Capture はスナップショットを1回取得して保存する
//
// 同時に実行できるキャプチャは1つだけで、後続はポリシーに従って待つか拒否される。
// 一部の出力が失敗しても成功した出力は保存し、*PartialErrorを返す。
// 1つも保存できなかった場合は出力ごとの失敗をまとめたエラーを返す。
func (c *Coordinator) Capture(ctx context.Context, req Request) (*Result, error) {
	if err := c.acquire(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("キャプチャを開始できません")
		return nil, err
	}
	defer c.release()

	wanted, skipped := c.plan(req.Flags)
	if len(wanted) == 0 {
		err := camera.NewOpError(camera.ErrNothingToCapture, "", "capture", errors.New("要求に一致する有効なセンサーがありません"))
		c.logger.Warn().EmbedObject(err).Msg("キャプチャ対象がありません")
		return nil, err
	}

	res := &Result{
		ID:        uuid.NewString(),
		Timestamp: c.assignTimestamp(req.Timestamp),
		Written:   make(map[storage.Output]string),
		Failed:    make(map[storage.Output]error),
		Skipped:   skipped,
	}

	snap, flags := c.read(wanted, res)

	if flags != (storage.Flags{}) {
		report, err := c.store.Persist(ctx, snap, flags, req.Dir)
		if report != nil {
			for o, p := range report.Written {
				res.Written[o] = p
			}
			for o, e := range report.Failed {
				res.Failed[o] = e
			}
		}
		if err != nil && len(res.Written) == 0 && (report == nil || len(report.Failed) == 0) {
			// 保存先自体が使えない
			c.logger.Error().Err(err).Str("dir", req.Dir).Msg("キャプチャの保存に失敗")
			return res, err
		}
	}

	logEv := c.logger.Info()
	if len(res.Failed) > 0 {
		logEv = c.logger.Warn()
	}
	logEv.Str("capture_id", res.ID).
		Time("timestamp", res.Timestamp).
		Int("written", len(res.Written)).
		Int("failed", len(res.Failed)).
		Msg("キャプチャを完了しました")

	if len(res.Failed) > 0 && len(res.Written) == 0 {
		return res, failedAll(res.Failed)
	}
	if len(res.Failed) > 0 {
		return res, &PartialError{Failed: res.Failed}
	}
	return res, nil
}

// failedAll は全出力の失敗を1つのエラーにまとめる
//
// 種別が揃っていればその種別を使う。揃っていなければ保存の失敗を優先して
// ErrStorageUnavailableとし、保存の失敗が無ければErrDeviceFailureとする。
func failedAll(failed map[storage.Output]error) error {
	var (
		errs    []error
		kinds   = make(map[camera.ErrorKind]struct{})
		storing bool
	)
	for _, o := range storage.Outputs {
		err, ok := failed[o]
		if !ok {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", o, err))

		k, _ := camera.KindOf(err)
		kinds[k] = struct{}{}
		if k == camera.ErrStorageUnavailable {
			storing = true
		}
	}

	kind := camera.ErrDeviceFailure
	if storing {
		kind = camera.ErrStorageUnavailable
	}
	if len(kinds) == 1 {
		for k := range kinds {
			if k != "" {
				kind = k
			}
		}
	}
	return camera.NewOpError(kind, "", "capture", errors.Join(errs...))
}
