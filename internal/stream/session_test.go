package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dualsight/internal/camera"
)

// newOpenedVisible はモックSDK上で開いた可視光アダプターを返す
func newOpenedVisible(t *testing.T) (*camera.VisibleAdapter, *camera.MockVisibleSDK, camera.Handle) {
	t.Helper()

	ctrl := gomock.NewController(t)
	sdk := camera.NewMockVisibleSDK(ctrl)
	sdk.EXPECT().EnumDevices().Return([]camera.VisibleDeviceInfo{{Transport: "USB", Model: "test"}}, nil)
	sdk.EXPECT().OpenDevice(0).Return(camera.VendorHandle(1), nil)
	sdk.EXPECT().SetTriggerMode(camera.VendorHandle(1), false).Return(nil)

	a := camera.NewVisibleAdapter(sdk, zerolog.Nop())
	h, err := a.Open(context.Background(), camera.DeviceDescriptor{Index: 0})
	require.NoError(t, err)
	return a, sdk, h
}

func TestSession_StopWithoutStartIsNoop(t *testing.T) {
	a, _, _ := newOpenedVisible(t)
	s := NewSession(a, NewFrameBuffer(camera.KindVisible), time.Second, zerolog.Nop())

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StatusIdle, s.Status())
}

func TestSession_DeliversIntoBuffer(t *testing.T) {
	a, sdk, h := newOpenedVisible(t)

	var cb camera.FrameCallback
	sdk.EXPECT().StartGrabbing(camera.VendorHandle(1), gomock.Any()).DoAndReturn(func(_ camera.VendorHandle, c camera.FrameCallback) error {
		cb = c
		return nil
	})
	sdk.EXPECT().StopGrabbing(camera.VendorHandle(1)).Return(nil)

	buf := NewFrameBuffer(camera.KindVisible)
	s := NewSession(a, buf, time.Second, zerolog.Nop())

	var pushed atomic.Int32
	require.NoError(t, s.Start(context.Background(), h, func(camera.Frame) { pushed.Add(1) }))
	assert.Equal(t, StatusRunning, s.Status())
	assert.True(t, s.Active())

	cb(camera.RawFrame{Data: []byte{1, 2, 3}, Width: 1, Height: 1, Format: camera.PixelRGB8}, nil)
	cb(camera.RawFrame{Data: []byte{4, 5, 6}, Width: 1, Height: 1, Format: camera.PixelRGB8}, nil)

	f, ok := buf.Latest()
	require.True(t, ok)
	assert.Equal(t, []byte{4, 5, 6}, f.Data)
	assert.Equal(t, int32(2), pushed.Load())

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, StatusIdle, s.Status())
	assert.Equal(t, camera.StateOpened, a.State(h))

	// 停止でバッファは空になり、遅れて届いたフレームは捨てられる
	_, ok = buf.Latest()
	assert.False(t, ok)
	cb(camera.RawFrame{Data: []byte{7, 8, 9}, Width: 1, Height: 1, Format: camera.PixelRGB8}, nil)
	_, ok = buf.Latest()
	assert.False(t, ok)
	assert.Equal(t, int32(2), pushed.Load())
}

func TestSession_StartFailure(t *testing.T) {
	a, sdk, h := newOpenedVisible(t)
	sdk.EXPECT().StartGrabbing(camera.VendorHandle(1), gomock.Any()).Return(&camera.VendorError{Call: "MV_CC_StartGrabbing", Code: 3})

	s := NewSession(a, NewFrameBuffer(camera.KindVisible), time.Second, zerolog.Nop())
	err := s.Start(context.Background(), h, nil)
	assert.ErrorIs(t, err, camera.ErrStreamStartFailed)
	assert.Equal(t, StatusIdle, s.Status())
}

func TestSession_StartOnClosedDevice(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := camera.NewVisibleAdapter(camera.NewMockVisibleSDK(ctrl), zerolog.Nop())
	s := NewSession(a, NewFrameBuffer(camera.KindVisible), time.Second, zerolog.Nop())

	err := s.Start(context.Background(), camera.Handle{ID: "closed"}, nil)
	assert.ErrorIs(t, err, camera.ErrStreamStartFailed)
}

func TestSession_StartTwice(t *testing.T) {
	a, sdk, h := newOpenedVisible(t)
	sdk.EXPECT().StartGrabbing(camera.VendorHandle(1), gomock.Any()).Return(nil)
	sdk.EXPECT().StopGrabbing(camera.VendorHandle(1)).Return(nil)

	s := NewSession(a, NewFrameBuffer(camera.KindVisible), time.Second, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), h, nil))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.ErrorIs(t, s.Start(context.Background(), h, nil), camera.ErrStreamStartFailed)
}

func TestSession_DeliveryErrorDegradesToStale(t *testing.T) {
	a, sdk, h := newOpenedVisible(t)

	var cb camera.FrameCallback
	sdk.EXPECT().StartGrabbing(camera.VendorHandle(1), gomock.Any()).DoAndReturn(func(_ camera.VendorHandle, c camera.FrameCallback) error {
		cb = c
		return nil
	})
	sdk.EXPECT().StopGrabbing(camera.VendorHandle(1)).Return(nil)

	s := NewSession(a, NewFrameBuffer(camera.KindVisible), time.Minute, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), h, nil))
	defer func() { _ = s.Stop(context.Background()) }()

	cb(camera.RawFrame{}, errors.New("timeout"))
	assert.Equal(t, StatusStale, s.Status())
	assert.True(t, s.Active())
	assert.Equal(t, uint64(1), s.Info().Errors)

	// 次のフレームで復帰する
	cb(camera.RawFrame{Data: []byte{1}, Width: 1, Height: 1, Format: camera.PixelMono8}, nil)
	assert.Equal(t, StatusRunning, s.Status())
}

func TestSession_WatchdogMarksStale(t *testing.T) {
	a, sdk, h := newOpenedVisible(t)
	sdk.EXPECT().StartGrabbing(camera.VendorHandle(1), gomock.Any()).Return(nil)
	sdk.EXPECT().StopGrabbing(camera.VendorHandle(1)).Return(nil)

	s := NewSession(a, NewFrameBuffer(camera.KindVisible), 20*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), h, nil))
	defer func() { _ = s.Stop(context.Background()) }()

	assert.Eventually(t, func() bool {
		return s.Status() == StatusStale
	}, time.Second, 5*time.Millisecond)
}

func TestSession_SlowFrameRateDoesNotGoStale(t *testing.T) {
	a, sdk, h := newOpenedVisible(t)
	sdk.EXPECT().StartGrabbing(camera.VendorHandle(1), gomock.Any()).Return(nil)
	sdk.EXPECT().StopGrabbing(camera.VendorHandle(1)).Return(nil)

	// 0.1fps相当の間隔なら20msでは途絶とみなさない
	s := NewSession(a, NewFrameBuffer(camera.KindVisible), 20*time.Millisecond, zerolog.Nop())
	s.SetFrameInterval(10 * time.Second)
	assert.Equal(t, 20*time.Second, s.StaleThreshold())

	require.NoError(t, s.Start(context.Background(), h, nil))
	defer func() { _ = s.Stop(context.Background()) }()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StatusRunning, s.Status())

	// 間隔を戻すとstaleAfterで判定する
	s.SetFrameInterval(0)
	assert.Equal(t, 20*time.Millisecond, s.StaleThreshold())
	assert.Eventually(t, func() bool {
		return s.Status() == StatusStale
	}, time.Second, 5*time.Millisecond)
}

func TestSession_StopClosesBufferDone(t *testing.T) {
	a, sdk, h := newOpenedVisible(t)
	sdk.EXPECT().StartGrabbing(camera.VendorHandle(1), gomock.Any()).Return(nil)
	sdk.EXPECT().StopGrabbing(camera.VendorHandle(1)).Return(nil)

	buf := NewFrameBuffer(camera.KindVisible)
	s := NewSession(a, buf, time.Minute, zerolog.Nop())
	require.NoError(t, s.Start(context.Background(), h, nil))

	done := buf.Done()
	seen := make(chan Status, 1)
	go func() {
		<-done
		seen <- s.Status()
	}()

	require.NoError(t, s.Stop(context.Background()))
	select {
	case st := <-seen:
		// 閉じた時点で既にIdleになっている
		assert.Equal(t, StatusIdle, st)
	case <-time.After(time.Second):
		t.Fatal("停止してもDoneが閉じません")
	}
}
