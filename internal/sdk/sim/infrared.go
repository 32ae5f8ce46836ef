package sim

import (
	"math"
	"sync"
	"time"

	"dualsight/internal/camera"
)

// DefaultInfraredSize は赤外線センサーの既定解像度
var DefaultInfraredSize = camera.Resolution{Width: 512, Height: 384}

// InfraredOptions は模擬赤外線SDKの設定
type InfraredOptions struct {
	User     string
	Password string
	Size     camera.Resolution
	Interval time.Duration
}

type infraredDevice struct {
	server   string
	loggedIn bool
	param    camera.ThermometryParam
	video    *runner
	frame    uint64
	focus    int
	shutters int
}

// Infrared は赤外線カメラSDKの模擬実装
type Infrared struct {
	opts InfraredOptions

	mu      sync.Mutex
	next    camera.VendorHandle
	devices map[camera.VendorHandle]*infraredDevice
}

var _ camera.InfraredSDK = (*Infrared)(nil)

// NewInfrared は模擬赤外線SDKを作成する
func NewInfrared(opts InfraredOptions) *Infrared {
	if opts.Size.Pixels() == 0 {
		opts.Size = DefaultInfraredSize
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultFrameInterval
	}
	return &Infrared{
		opts:    opts,
		next:    0x200,
		devices: make(map[camera.VendorHandle]*infraredDevice),
	}
}

// InitDevice は新しいSDKハンドルを払い出す
func (s *Infrared) InitDevice() (camera.VendorHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.devices[s.next] = &infraredDevice{
		param: camera.ThermometryParam{ColorBar: 1, ColorShow: true, Distance: 5, Emission: 0.95},
	}
	return s.next, nil
}

// UninitDevice はハンドルを破棄する
func (s *Infrared) UninitDevice(h camera.VendorHandle) {
	s.mu.Lock()
	d, ok := s.devices[h]
	delete(s.devices, h)
	s.mu.Unlock()

	if ok && d.video != nil {
		d.video.stop()
	}
}

// Login は認証情報を確認する
func (s *Infrared) Login(h camera.VendorHandle, server, user, password string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[h]
	if !ok {
		return vendorErr("SGP_Login", StatusHandle)
	}
	if server == "" || port < 1 || port > 65535 {
		return vendorErr("SGP_Login", StatusParameter)
	}
	if user != s.opts.User || password != s.opts.Password {
		return vendorErr("SGP_Login", StatusLoginFailed)
	}
	d.server = server
	d.loggedIn = true
	return nil
}

// Logout はログアウトする
func (s *Infrared) Logout(h camera.VendorHandle) error {
	d, err := s.loggedIn("SGP_Logout", h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	d.loggedIn = false
	video := d.video
	d.video = nil
	s.mu.Unlock()

	if video != nil {
		video.stop()
	}
	return nil
}

// GetGeneralInfo はセンサーの基本情報を返す
func (s *Infrared) GetGeneralInfo(h camera.VendorHandle) (camera.GeneralInfo, error) {
	if _, err := s.loggedIn("SGP_GetGeneralInfo", h); err != nil {
		return camera.GeneralInfo{}, err
	}
	return camera.GeneralInfo{
		Model:  "SIM-IR640",
		Serial: "SIMIR0001",
		Width:  s.opts.Size.Width,
		Height: s.opts.Size.Height,
	}, nil
}

// OpenIrVideo は赤外線映像の配信を開始する
func (s *Infrared) OpenIrVideo(h camera.VendorHandle, cb camera.FrameCallback) error {
	d, err := s.loggedIn("SGP_OpenIrVideo", h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d.video != nil {
		return vendorErr("SGP_OpenIrVideo", StatusCallOrder)
	}
	d.video = startRunner(s.opts.Interval, func(n uint64, buf []byte) camera.RawFrame {
		return s.produce(h, n, buf)
	}, cb)
	return nil
}

// CloseIrVideo は赤外線映像の配信を停止する
func (s *Infrared) CloseIrVideo(h camera.VendorHandle) error {
	d, err := s.loggedIn("SGP_CloseIrVideo", h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	video := d.video
	d.video = nil
	s.mu.Unlock()

	if video == nil {
		return vendorErr("SGP_CloseIrVideo", StatusCallOrder)
	}
	video.stop()
	return nil
}

// GetImageTemps は現在の温度分布を返す
func (s *Infrared) GetImageTemps(h camera.VendorHandle, length int) ([]float32, error) {
	d, err := s.loggedIn("SGP_GetImageTemps", h)
	if err != nil {
		return nil, err
	}
	if length <= 0 {
		return nil, vendorErr("SGP_GetImageTemps", StatusParameter)
	}

	s.mu.Lock()
	n := d.frame
	s.mu.Unlock()

	temps := s.temperatures(n)
	if length < len(temps) {
		temps = temps[:length]
	}
	return temps, nil
}

// GetThermometryParam は測温パラメータを返す
func (s *Infrared) GetThermometryParam(h camera.VendorHandle) (camera.ThermometryParam, error) {
	d, err := s.loggedIn("SGP_GetThermometryParam", h)
	if err != nil {
		return camera.ThermometryParam{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return d.param, nil
}

// SetThermometryParam は測温パラメータを設定する
func (s *Infrared) SetThermometryParam(h camera.VendorHandle, p camera.ThermometryParam) error {
	d, err := s.loggedIn("SGP_SetThermometryParam", h)
	if err != nil {
		return err
	}
	if p.ColorBar < 1 || p.ColorBar > camera.PaletteCount {
		return vendorErr("SGP_SetThermometryParam", StatusParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d.param = p
	return nil
}

// SetFocus はフォーカスを操作する
func (s *Infrared) SetFocus(h camera.VendorHandle, mode int, value int) error {
	d, err := s.loggedIn("SGP_SetFocus", h)
	if err != nil {
		return err
	}
	if mode != camera.FocusAuto {
		return vendorErr("SGP_SetFocus", StatusParameter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d.focus++
	return nil
}

// DoShutter はシャッター補正を行う
func (s *Infrared) DoShutter(h camera.VendorHandle) error {
	d, err := s.loggedIn("SGP_DoShutter", h)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d.shutters++
	return nil
}

// Calibrations はオートフォーカスとシャッター補正の実行回数を返す
func (s *Infrared) Calibrations(h camera.VendorHandle) (focus, shutters int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.devices[h]; ok {
		return d.focus, d.shutters
	}
	return 0, 0
}

func (s *Infrared) loggedIn(call string, h camera.VendorHandle) (*infraredDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[h]
	if !ok {
		return nil, vendorErr(call, StatusHandle)
	}
	if !d.loggedIn {
		return nil, vendorErr(call, StatusCallOrder)
	}
	return d, nil
}

// temperatures はフレーム番号に応じて移動する熱源を持つ温度分布を返す
func (s *Infrared) temperatures(n uint64) []float32 {
	w, h := s.opts.Size.Width, s.opts.Size.Height
	temps := make([]float32, w*h)

	phase := float64(n) / 20
	cx := float64(w)/2 + float64(w)/4*math.Sin(phase)
	cy := float64(h)/2 + float64(h)/4*math.Cos(phase)
	sigma2 := 2 * math.Pow(float64(w)/10, 2)

	for y := 0; y < h; y++ {
		dy := float64(y) - cy
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			temps[y*w+x] = float32(22 + 15*math.Exp(-(dx*dx+dy*dy)/sigma2))
		}
	}
	return temps
}

// produce は温度分布をRGB888の画像に変換する
func (s *Infrared) produce(h camera.VendorHandle, n uint64, buf []byte) camera.RawFrame {
	s.mu.Lock()
	var colored bool
	if d, ok := s.devices[h]; ok {
		d.frame = n
		colored = d.param.ColorShow
	}
	s.mu.Unlock()

	temps := s.temperatures(n)
	buf = grow(buf, len(temps)*3)

	for i, t := range temps {
		// 22..37度を0..255に
		v := byte(math.Max(0, math.Min(255, (float64(t)-22)*17)))
		if colored {
			buf[i*3], buf[i*3+1], buf[i*3+2] = v, v/2, 255-v
		} else {
			buf[i*3], buf[i*3+1], buf[i*3+2] = v, v, v
		}
	}

	return camera.RawFrame{
		Data:     buf,
		Width:    s.opts.Size.Width,
		Height:   s.opts.Size.Height,
		Format:   camera.PixelRGB8,
		FrameNum: n,
	}
}
