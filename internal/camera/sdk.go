package camera

//go:generate mockgen -destination=mock_sdk.go -package=camera dualsight/internal/camera VisibleSDK,InfraredSDK

// VendorHandle はベンダーSDKが払い出す生のハンドル
type VendorHandle uint64

// RawFrame はSDKのコールバックが渡すフレーム
//
// Dataはコールバックから戻った後にSDKが再利用する可能性がある。
type RawFrame struct {
	Data     []byte
	Width    int
	Height   int
	Format   PixelFormat
	FrameNum uint64
}

// FrameCallback はSDKが所有するゴルーチンから呼ばれる
//
// errが非nilの場合は配信エラーを表し、frameは無効。
type FrameCallback func(frame RawFrame, err error)

// VisibleDeviceInfo は可視光SDKが列挙したデバイス情報
type VisibleDeviceInfo struct {
	Transport string // GigE, USB, CameraLink, CoaXPress, XoF
	Model     string
	Serial    string
	UserName  string
	Address   string // GigEの場合のIPアドレス
}

// VisibleSDK は可視光カメラのベンダーSDKが満たすべき契約
type VisibleSDK interface {
	EnumDevices() ([]VisibleDeviceInfo, error)
	OpenDevice(index int) (VendorHandle, error)
	CloseDevice(h VendorHandle) error
	SetTriggerMode(h VendorHandle, on bool) error
	StartGrabbing(h VendorHandle, cb FrameCallback) error
	StopGrabbing(h VendorHandle) error
	GetFloatValue(h VendorHandle, node string) (float64, error)
	SetFloatValue(h VendorHandle, node string, value float64) error
}

// GeneralInfo は赤外線カメラの基本情報
type GeneralInfo struct {
	Model  string
	Serial string
	Width  int // 赤外線画像の幅
	Height int // 赤外線画像の高さ
}

// ThermometryParam は測温パラメータのうち本パッケージが扱う項目
type ThermometryParam struct {
	ColorBar  int  // カラーバー番号 (1始まり)
	ColorShow bool // 疑似カラー表示
	Distance  float32
	Emission  float32
}

// FocusAuto はSetFocusに渡すオートフォーカスのモード値
const FocusAuto = 5

// InfraredSDK は赤外線カメラのベンダーSDKが満たすべき契約
type InfraredSDK interface {
	InitDevice() (VendorHandle, error)
	UninitDevice(h VendorHandle)
	Login(h VendorHandle, server, user, password string, port int) error
	Logout(h VendorHandle) error
	GetGeneralInfo(h VendorHandle) (GeneralInfo, error)
	OpenIrVideo(h VendorHandle, cb FrameCallback) error
	CloseIrVideo(h VendorHandle) error
	// GetImageTemps は最大length個の温度値を返す
	GetImageTemps(h VendorHandle, length int) ([]float32, error)
	GetThermometryParam(h VendorHandle) (ThermometryParam, error)
	SetThermometryParam(h VendorHandle, p ThermometryParam) error
	SetFocus(h VendorHandle, mode int, value int) error
	DoShutter(h VendorHandle) error
}
