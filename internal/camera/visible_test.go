package camera

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingSink はテスト用のFrameSink
type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
	errs   []error
}

func (s *recordingSink) OnFrame(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
}

func (s *recordingSink) OnError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

var testDevices = []VisibleDeviceInfo{
	{Transport: "GigE", Model: "MV-CA050", Serial: "SN001", UserName: "left", Address: "192.168.1.10"},
	{Transport: "USB", Model: "MV-CS016", Serial: "SN002"},
}

func openVisible(t *testing.T, ctrl *gomock.Controller) (*VisibleAdapter, *MockVisibleSDK, Handle) {
	t.Helper()

	sdk := NewMockVisibleSDK(ctrl)
	sdk.EXPECT().EnumDevices().Return(testDevices, nil)
	sdk.EXPECT().OpenDevice(0).Return(VendorHandle(7), nil)
	sdk.EXPECT().SetTriggerMode(VendorHandle(7), false).Return(nil)

	a := NewVisibleAdapter(sdk, zerolog.Nop())
	h, err := a.Open(context.Background(), DeviceDescriptor{Index: 0})
	require.NoError(t, err)
	require.Equal(t, StateOpened, a.State(h))
	return a, sdk, h
}

func TestVisibleAdapter_Enumerate(t *testing.T) {
	ctrl := gomock.NewController(t)
	sdk := NewMockVisibleSDK(ctrl)
	sdk.EXPECT().EnumDevices().Return(testDevices, nil)

	a := NewVisibleAdapter(sdk, zerolog.Nop())
	descs, err := a.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 2)

	assert.Equal(t, "SN001", descs[0].ID)
	assert.Equal(t, "[0]GigE: left (192.168.1.10)", descs[0].Name)
	assert.Equal(t, KindVisible, descs[1].Kind)
	assert.Equal(t, 1, descs[1].Index)
	assert.Equal(t, "[1]USB: MV-CS016", descs[1].Name)
}

func TestVisibleAdapter_OpenUnknownIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	sdk := NewMockVisibleSDK(ctrl)
	sdk.EXPECT().EnumDevices().Return(testDevices, nil)

	a := NewVisibleAdapter(sdk, zerolog.Nop())
	_, err := a.Open(context.Background(), DeviceDescriptor{Index: 5})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestVisibleAdapter_OpenTwiceIsInvalidState(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, _, _ := openVisible(t, ctrl)

	_, err := a.Open(context.Background(), DeviceDescriptor{Index: 0})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestVisibleAdapter_OpenTriggerFailureReleasesDevice(t *testing.T) {
	ctrl := gomock.NewController(t)
	sdk := NewMockVisibleSDK(ctrl)
	sdk.EXPECT().EnumDevices().Return(testDevices, nil)
	sdk.EXPECT().OpenDevice(1).Return(VendorHandle(3), nil)
	sdk.EXPECT().SetTriggerMode(VendorHandle(3), false).Return(&VendorError{Call: "MV_CC_SetEnumValue", Code: 0x80000106})
	sdk.EXPECT().CloseDevice(VendorHandle(3)).Return(nil)

	a := NewVisibleAdapter(sdk, zerolog.Nop())
	_, err := a.Open(context.Background(), DeviceDescriptor{Index: 1})
	require.Error(t, err)

	code, ok := VendorCode(err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x80000106), code)
}

func TestVisibleAdapter_SetParameterRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, sdk, h := openVisible(t, ctrl)

	sdk.EXPECT().SetFloatValue(VendorHandle(7), "ExposureTime", 5000.0).Return(nil)
	require.NoError(t, a.SetParameter(h, ParamExposure, 5000))

	// 範囲外の値はSDKに渡らない
	tests := []struct {
		name  string
		param string
		value float64
	}{
		{"露光が短すぎる", ParamExposure, 14},
		{"露光が長すぎる", ParamExposure, 20001},
		{"ゲインが負", ParamGain, -1},
		{"ゲインが大きすぎる", ParamGain, 17.5},
		{"フレームレートが0", ParamFrameRate, 0},
		{"フレームレートが大きすぎる", ParamFrameRate, 80.1},
		{"未知のパラメータ", "brightness", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.SetParameter(h, tt.param, tt.value)
			assert.ErrorIs(t, err, ErrInvalidParameter)
			assert.Equal(t, StateOpened, a.State(h))
		})
	}
}

func TestVisibleAdapter_SetParameterRequiresOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := NewVisibleAdapter(NewMockVisibleSDK(ctrl), zerolog.Nop())

	err := a.SetParameter(Handle{ID: "nope"}, ParamGain, 3)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestVisibleAdapter_GetParameter(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, sdk, h := openVisible(t, ctrl)

	sdk.EXPECT().GetFloatValue(VendorHandle(7), "AcquisitionFrameRate").Return(30.0, nil)
	v, err := a.GetParameter(h, ParamFrameRate)
	require.NoError(t, err)
	assert.Equal(t, 30.0, v)

	_, err = a.GetParameter(h, "zoom")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestVisibleAdapter_StreamLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, sdk, h := openVisible(t, ctrl)

	var cb FrameCallback
	sdk.EXPECT().StartGrabbing(VendorHandle(7), gomock.Any()).DoAndReturn(func(_ VendorHandle, c FrameCallback) error {
		cb = c
		return nil
	})

	sink := &recordingSink{}
	require.NoError(t, a.StartStream(h, sink))
	assert.True(t, a.IsStreaming(h))

	// 二重開始は不正な遷移
	assert.ErrorIs(t, a.StartStream(h, sink), ErrInvalidState)

	buf := []byte{1, 2, 3, 4, 5, 6}
	cb(RawFrame{Data: buf, Width: 2, Height: 1, Format: PixelRGB8}, nil)
	buf[0] = 99 // SDKがバッファを再利用しても配信済みフレームは変わらない
	cb(RawFrame{}, errors.New("packet lost"))

	require.Len(t, sink.frames, 1)
	assert.Equal(t, byte(1), sink.frames[0].Data[0])
	assert.Equal(t, uint64(1), sink.frames[0].Seq)
	require.Len(t, sink.errs, 1)

	sdk.EXPECT().StopGrabbing(VendorHandle(7)).Return(nil)
	require.NoError(t, a.StopStream(h))
	assert.Equal(t, StateOpened, a.State(h))

	// 配信していない状態での停止は何もしない
	require.NoError(t, a.StopStream(h))
}

func TestVisibleAdapter_StartStreamFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, sdk, h := openVisible(t, ctrl)

	sdk.EXPECT().StartGrabbing(VendorHandle(7), gomock.Any()).Return(&VendorError{Call: "MV_CC_StartGrabbing", Code: 0x80000003})

	err := a.StartStream(h, &recordingSink{})
	assert.ErrorIs(t, err, ErrStreamStartFailed)
	assert.Equal(t, StateOpened, a.State(h))
}

func TestVisibleAdapter_CloseImpliesStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, sdk, h := openVisible(t, ctrl)

	gomock.InOrder(
		sdk.EXPECT().StartGrabbing(VendorHandle(7), gomock.Any()).Return(nil),
		sdk.EXPECT().StopGrabbing(VendorHandle(7)).Return(nil),
		sdk.EXPECT().CloseDevice(VendorHandle(7)).Return(nil),
	)

	require.NoError(t, a.StartStream(h, &recordingSink{}))
	require.NoError(t, a.Close(h))
	assert.Equal(t, StateClosed, a.State(h))

	assert.ErrorIs(t, a.Close(h), ErrInvalidState)
}

func TestVisibleAdapter_CloseReleasesOnVendorError(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, sdk, h := openVisible(t, ctrl)

	sdk.EXPECT().CloseDevice(VendorHandle(7)).Return(&VendorError{Call: "MV_CC_CloseDevice", Code: 1})

	err := a.Close(h)
	assert.ErrorIs(t, err, ErrDeviceFailure)
	assert.Equal(t, StateClosed, a.State(h))
}

func TestVisibleAdapter_Shutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, sdk, h := openVisible(t, ctrl)

	sdk.EXPECT().CloseDevice(VendorHandle(7)).Return(nil)
	require.NoError(t, a.Shutdown())
	assert.Equal(t, StateClosed, a.State(h))
}
