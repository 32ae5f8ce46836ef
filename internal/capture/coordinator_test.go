package capture

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsight/internal/camera"
	"dualsight/internal/storage"
)

var testTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

type fakeFrames struct {
	active bool
	frame  camera.Frame
	ok     bool
}

func (f *fakeFrames) Active() bool                 { return f.active }
func (f *fakeFrames) Latest() (camera.Frame, bool) { return f.frame, f.ok }

func activeFrames(w, h int) *fakeFrames {
	return &fakeFrames{
		active: true,
		ok:     true,
		frame:  camera.Frame{Data: make([]byte, w*h*3), Width: w, Height: h, Format: camera.PixelRGB8},
	}
}

type fakeTemps struct {
	active bool
	res    camera.Resolution
	err    error
}

func (f *fakeTemps) Active() bool { return f.active }

func (f *fakeTemps) ReadTemperatureMatrix() (camera.TemperatureMatrix, error) {
	if f.err != nil {
		return camera.TemperatureMatrix{}, f.err
	}
	return camera.TemperatureMatrix{Width: f.res.Width, Height: f.res.Height, Values: make([]float32, f.res.Pixels())}, nil
}

func (f *fakeTemps) Resolution() (camera.Resolution, error) { return f.res, nil }

var fullFlags = storage.Flags{SaveVisible: true, SaveInfrared: true, SaveTemperature: true}

func newTestCoordinator(t *testing.T, sources Sources, cfg Config) (*Coordinator, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store := storage.NewManager(fs, 0, zerolog.Nop())
	return NewCoordinator(sources, store, cfg, zerolog.Nop()), fs
}

func bothActive() Sources {
	return Sources{
		Visible:     activeFrames(64, 48),
		Infrared:    activeFrames(512, 384),
		Temperature: &fakeTemps{active: true, res: camera.Resolution{Width: 512, Height: 384}},
	}
}

func TestCapture_BothSensorsShareTimestamp(t *testing.T) {
	c, fs := newTestCoordinator(t, bothActive(), DefaultConfig())

	res, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags, Timestamp: testTime})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, testTime, res.Timestamp)
	assert.Empty(t, res.Skipped)

	for _, name := range []string{"20240101120000_rgb.jpg", "20240101120000_ir.jpg", "20240101120000_temp.json"} {
		exists, err := afero.Exists(fs, filepath.Join("records", name))
		require.NoError(t, err)
		assert.True(t, exists, name)
	}
	assert.Len(t, res.Written, 3)
}

func TestCapture_OnlyActiveSensorIsSaved(t *testing.T) {
	sources := bothActive()
	sources.Visible = &fakeFrames{active: false}
	c, fs := newTestCoordinator(t, sources, DefaultConfig())

	res, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags, Timestamp: testTime})
	require.NoError(t, err)
	assert.Equal(t, []storage.Output{storage.OutputVisible}, res.Skipped)
	assert.NotContains(t, res.Written, storage.OutputVisible)

	exists, err := afero.Exists(fs, filepath.Join("records", "20240101120000_rgb.jpg"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCapture_NothingToCapture(t *testing.T) {
	c, _ := newTestCoordinator(t, Sources{Visible: &fakeFrames{}}, DefaultConfig())

	_, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
	assert.ErrorIs(t, err, camera.ErrNothingToCapture)

	// センサーは有効でもフラグが全てオフ
	c, _ = newTestCoordinator(t, bothActive(), DefaultConfig())
	_, err = c.Capture(context.Background(), Request{Dir: "records"})
	assert.ErrorIs(t, err, camera.ErrNothingToCapture)
}

func TestCapture_TemperatureFailureIsPartial(t *testing.T) {
	sources := bothActive()
	sources.Temperature = &fakeTemps{
		active: true,
		err:    camera.NewOpError(camera.ErrDeviceFailure, camera.KindInfrared, "read_temperature", errors.New("timeout")),
	}
	c, _ := newTestCoordinator(t, sources, DefaultConfig())

	res, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags, Timestamp: testTime})
	require.Error(t, err)
	assert.ErrorIs(t, err, camera.ErrPartialCapture)
	assert.ErrorIs(t, err, camera.ErrDeviceFailure)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Contains(t, partial.Failed, storage.OutputTemperature)
	assert.Len(t, res.Written, 2)
}

func TestCapture_NoFrameYetIsPartial(t *testing.T) {
	sources := bothActive()
	sources.Infrared = &fakeFrames{active: true}
	c, _ := newTestCoordinator(t, sources, DefaultConfig())

	res, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags, Timestamp: testTime})
	assert.ErrorIs(t, err, camera.ErrPartialCapture)
	assert.ErrorIs(t, res.Failed[storage.OutputInfrared], camera.ErrNothingToCapture)
	assert.Contains(t, res.Written, storage.OutputVisible)
}

func TestCapture_OnlyWantedSensorWithoutFrameFails(t *testing.T) {
	sources := bothActive()
	sources.Infrared = &fakeFrames{active: true}
	c, _ := newTestCoordinator(t, sources, DefaultConfig())

	// 何も保存できなければ部分成功ではない
	res, err := c.Capture(context.Background(), Request{Dir: "records", Flags: storage.Flags{SaveInfrared: true}, Timestamp: testTime})
	require.Error(t, err)
	assert.NotErrorIs(t, err, camera.ErrPartialCapture)
	assert.ErrorIs(t, err, camera.ErrNothingToCapture)

	kind, ok := camera.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, camera.ErrNothingToCapture, kind)
	require.NotNil(t, res)
	assert.Empty(t, res.Written)
	assert.Contains(t, res.Failed, storage.OutputInfrared)
}

// failingWrites は保存先の作成後に全ての書き込みが失敗するPersister
type failingWrites struct{}

func (failingWrites) Persist(_ context.Context, _ storage.Snapshot, flags storage.Flags, dir string) (*storage.Report, error) {
	report := &storage.Report{Written: map[storage.Output]string{}, Failed: map[storage.Output]error{}}
	for _, o := range storage.Outputs {
		if flags.Wants(o) {
			report.Failed[o] = camera.NewOpError(camera.ErrStorageUnavailable, "", "write", errors.New("disk full"))
		}
	}
	return report, errors.New("全ての書き込みに失敗")
}

func TestCapture_AllWritesFailed(t *testing.T) {
	c := NewCoordinator(bothActive(), failingWrites{}, DefaultConfig(), zerolog.Nop())

	res, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags, Timestamp: testTime})
	require.Error(t, err)
	assert.NotErrorIs(t, err, camera.ErrPartialCapture)
	assert.ErrorIs(t, err, camera.ErrStorageUnavailable)
	assert.Empty(t, res.Written)
	assert.Len(t, res.Failed, 3)
}

func TestFailedAll_MixedKinds(t *testing.T) {
	err := failedAll(map[storage.Output]error{
		storage.OutputVisible:     noFrame(camera.KindVisible),
		storage.OutputTemperature: camera.NewOpError(camera.ErrDeviceFailure, camera.KindInfrared, "read_temperature", errors.New("timeout")),
	})
	kind, ok := camera.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, camera.ErrDeviceFailure, kind)
	assert.ErrorIs(t, err, camera.ErrNothingToCapture)

	err = failedAll(map[storage.Output]error{
		storage.OutputVisible:  noFrame(camera.KindVisible),
		storage.OutputInfrared: camera.NewOpError(camera.ErrStorageUnavailable, camera.KindInfrared, "write", errors.New("disk full")),
	})
	kind, _ = camera.KindOf(err)
	assert.Equal(t, camera.ErrStorageUnavailable, kind)
}

func TestCapture_StorageUnavailable(t *testing.T) {
	store := storage.NewManager(afero.NewReadOnlyFs(afero.NewMemMapFs()), 0, zerolog.Nop())
	c := NewCoordinator(bothActive(), store, DefaultConfig(), zerolog.Nop())

	_, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
	assert.ErrorIs(t, err, camera.ErrStorageUnavailable)
	assert.False(t, c.InFlight())
}

func TestCapture_AutoTimestampsNeverCollide(t *testing.T) {
	c, _ := newTestCoordinator(t, bothActive(), DefaultConfig())
	c.now = func() time.Time { return testTime.Add(300 * time.Millisecond) }

	first, err := c.Capture(context.Background(), Request{Dir: "records", Flags: storage.Flags{SaveVisible: true}})
	require.NoError(t, err)
	second, err := c.Capture(context.Background(), Request{Dir: "records", Flags: storage.Flags{SaveVisible: true}})
	require.NoError(t, err)

	assert.Equal(t, testTime, first.Timestamp)
	assert.Equal(t, testTime.Add(time.Second), second.Timestamp)
	assert.NotEqual(t, first.Written[storage.OutputVisible], second.Written[storage.OutputVisible])
}

// blockingStore は解放されるまでPersistを返さない
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
	inner   Persister
}

func (b *blockingStore) Persist(ctx context.Context, snap storage.Snapshot, flags storage.Flags, dir string) (*storage.Report, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.inner.Persist(ctx, snap, flags, dir)
}

func newBlockingStore() *blockingStore {
	return &blockingStore{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
		inner:   storage.NewManager(afero.NewMemMapFs(), 0, zerolog.Nop()),
	}
}

func TestCapture_RejectWhileBusy(t *testing.T) {
	store := newBlockingStore()
	c := NewCoordinator(bothActive(), store, Config{BusyPolicy: BusyReject}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
		done <- err
	}()
	<-store.entered
	assert.True(t, c.InFlight())

	_, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
	assert.ErrorIs(t, err, camera.ErrCaptureBusy)

	close(store.release)
	require.NoError(t, <-done)
	assert.False(t, c.InFlight())
}

func TestCapture_WaitTimesOut(t *testing.T) {
	store := newBlockingStore()
	c := NewCoordinator(bothActive(), store, Config{BusyPolicy: BusyWait, LockTimeout: 20 * time.Millisecond}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
		done <- err
	}()
	<-store.entered

	_, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
	assert.ErrorIs(t, err, camera.ErrCaptureBusy)

	close(store.release)
	require.NoError(t, <-done)
}

func TestCapture_ConcurrentRequestsAreSerialized(t *testing.T) {
	store := newBlockingStore()
	c := NewCoordinator(bothActive(), store, DefaultConfig(), zerolog.Nop())
	c.now = func() time.Time { return testTime }

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	// 1件目がPersist中は2件目が入ってこない
	<-store.entered
	select {
	case <-store.entered:
		t.Fatal("2件目のキャプチャが並行して実行された")
	case <-time.After(50 * time.Millisecond):
	}
	store.release <- struct{}{}
	<-store.entered
	store.release <- struct{}{}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.NotEqual(t, results[0].Timestamp, results[1].Timestamp)
}

func TestCapture_CanceledWhileWaiting(t *testing.T) {
	store := newBlockingStore()
	c := NewCoordinator(bothActive(), store, DefaultConfig(), zerolog.Nop())

	go func() {
		_, _ = c.Capture(context.Background(), Request{Dir: "records", Flags: fullFlags})
	}()
	<-store.entered
	defer close(store.release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Capture(ctx, Request{Dir: "records", Flags: fullFlags})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BusyPolicy: "unknown"}.withDefaults()
	assert.Equal(t, BusyWait, cfg.BusyPolicy)
	assert.Equal(t, DefaultLockTimeout, cfg.LockTimeout)
}
