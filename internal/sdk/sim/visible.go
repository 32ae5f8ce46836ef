package sim

import (
	"sync"
	"time"

	"dualsight/internal/camera"
)

// DefaultVisibleDevices は模擬SDKが列挙するデバイス
var DefaultVisibleDevices = []camera.VisibleDeviceInfo{
	{Transport: "GigE", Model: "MV-CA050-10GC", Serial: "SIM00001", Address: "192.168.1.64"},
}

// DefaultVisibleSize は可視光フレームの既定サイズ
var DefaultVisibleSize = camera.Resolution{Width: 640, Height: 480}

type visibleDevice struct {
	index   int
	trigger bool
	nodes   map[string]float64
	grab    *runner
}

// Visible は可視光カメラSDKの模擬実装
type Visible struct {
	devices []camera.VisibleDeviceInfo
	size    camera.Resolution

	mu     sync.Mutex
	next   camera.VendorHandle
	opened map[camera.VendorHandle]*visibleDevice
}

var _ camera.VisibleSDK = (*Visible)(nil)

// NewVisible は模擬可視光SDKを作成する
//
// devicesが空の場合はDefaultVisibleDevicesを使う。
func NewVisible(devices []camera.VisibleDeviceInfo, size camera.Resolution) *Visible {
	if len(devices) == 0 {
		devices = DefaultVisibleDevices
	}
	if size.Pixels() == 0 {
		size = DefaultVisibleSize
	}
	return &Visible{
		devices: devices,
		size:    size,
		next:    0x100,
		opened:  make(map[camera.VendorHandle]*visibleDevice),
	}
}

// EnumDevices は接続されているデバイスを返す
func (s *Visible) EnumDevices() ([]camera.VisibleDeviceInfo, error) {
	out := make([]camera.VisibleDeviceInfo, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

// OpenDevice はindex番目のデバイスを開く
func (s *Visible) OpenDevice(index int) (camera.VendorHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.devices) {
		return 0, vendorErr("MV_CC_OpenDevice", StatusNoDevice)
	}
	for _, d := range s.opened {
		if d.index == index {
			return 0, vendorErr("MV_CC_OpenDevice", StatusAccessDeny)
		}
	}

	s.next++
	h := s.next
	s.opened[h] = &visibleDevice{
		index:   index,
		trigger: true,
		nodes: map[string]float64{
			"ExposureTime":         10000,
			"Gain":                 0,
			"AcquisitionFrameRate": 1 / DefaultFrameInterval.Seconds(),
		},
	}
	return h, nil
}

// CloseDevice はデバイスを閉じる。取り込み中なら停止する
func (s *Visible) CloseDevice(h camera.VendorHandle) error {
	s.mu.Lock()
	d, ok := s.opened[h]
	if !ok {
		s.mu.Unlock()
		return vendorErr("MV_CC_CloseDevice", StatusHandle)
	}
	grab := d.grab
	delete(s.opened, h)
	s.mu.Unlock()

	if grab != nil {
		grab.stop()
	}
	return nil
}

// SetTriggerMode はトリガーモードを切り替える
func (s *Visible) SetTriggerMode(h camera.VendorHandle, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.opened[h]
	if !ok {
		return vendorErr("MV_CC_SetEnumValue", StatusHandle)
	}
	d.trigger = on
	return nil
}

// StartGrabbing は連続取り込みを開始する
//
// トリガーモードがオンのままでは開始できない。
func (s *Visible) StartGrabbing(h camera.VendorHandle, cb camera.FrameCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.opened[h]
	if !ok {
		return vendorErr("MV_CC_StartGrabbing", StatusHandle)
	}
	if d.grab != nil || d.trigger {
		return vendorErr("MV_CC_StartGrabbing", StatusCallOrder)
	}

	interval := time.Duration(float64(time.Second) / d.nodes["AcquisitionFrameRate"])
	d.grab = startRunner(interval, s.produce, cb)
	return nil
}

// StopGrabbing は取り込みを停止する
func (s *Visible) StopGrabbing(h camera.VendorHandle) error {
	s.mu.Lock()
	d, ok := s.opened[h]
	if !ok {
		s.mu.Unlock()
		return vendorErr("MV_CC_StopGrabbing", StatusHandle)
	}
	grab := d.grab
	d.grab = nil
	s.mu.Unlock()

	if grab == nil {
		return vendorErr("MV_CC_StopGrabbing", StatusCallOrder)
	}
	grab.stop()
	return nil
}

// GetFloatValue はノードの値を返す
func (s *Visible) GetFloatValue(h camera.VendorHandle, node string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.opened[h]
	if !ok {
		return 0, vendorErr("MV_CC_GetFloatValue", StatusHandle)
	}
	v, ok := d.nodes[node]
	if !ok {
		return 0, vendorErr("MV_CC_GetFloatValue", StatusParameter)
	}
	return v, nil
}

// SetFloatValue はノードに値を設定する
func (s *Visible) SetFloatValue(h camera.VendorHandle, node string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.opened[h]
	if !ok {
		return vendorErr("MV_CC_SetFloatValue", StatusHandle)
	}
	if _, ok := d.nodes[node]; !ok || value < 0 {
		return vendorErr("MV_CC_SetFloatValue", StatusParameter)
	}
	d.nodes[node] = value
	return nil
}

// produce はフレーム番号に応じて流れるグラデーションを描く
func (s *Visible) produce(n uint64, buf []byte) camera.RawFrame {
	w, h := s.size.Width, s.size.Height
	buf = grow(buf, w*h*3)

	shift := int(n * 4)
	for y := 0; y < h; y++ {
		g := byte(y * 255 / h)
		row := buf[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			row[x*3] = byte((x + shift) * 255 / w)
			row[x*3+1] = g
			row[x*3+2] = byte(shift)
		}
	}

	return camera.RawFrame{Data: buf, Width: w, Height: h, Format: camera.PixelRGB8, FrameNum: n}
}
