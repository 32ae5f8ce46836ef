package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"dualsight/internal/camera"
	"dualsight/internal/capture"
	"dualsight/internal/timelapse"
)

// Notice は不正な値を既定値に戻したことを表す
type Notice struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Default any    `json:"default"`
	Reason  string `json:"reason"`
}

func (n Notice) String() string {
	return fmt.Sprintf("%s: %v は不正なため %v に戻しました (%s)", n.Field, n.Value, n.Default, n.Reason)
}

var hostnameChars = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Validator は外部から与えられた設定値を検証し、不正な値を既定値に戻す
//
// アダプターやStorageManagerに不正な値が渡らないよう、設定は必ずここを通す。
type Validator struct {
	v *validator.Validate
}

// NewValidator は新しいValidatorを作成する
func NewValidator() *Validator {
	v := validator.New()
	// RegisterValidationは名前が空の場合のみ失敗する
	_ = v.RegisterValidation("hostname_chars", func(fl validator.FieldLevel) bool {
		return hostnameChars.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Apply は設定全体を検証し、補正した項目の一覧を返す
func (v *Validator) Apply(cfg *Config) []Notice {
	def := Default()
	var notices []Notice

	notices = append(notices, v.ApplyServer(&cfg.Server)...)
	notices = append(notices, v.ApplyVisible(&cfg.Visible)...)
	notices = append(notices, v.ApplyInfrared(&cfg.Infrared)...)
	notices = append(notices, v.ApplyStore(&cfg.Store)...)

	if err := v.v.Var(string(cfg.Capture.BusyPolicy), "oneof=wait reject"); err != nil {
		notices = append(notices, reset("capture.busy_policy", &cfg.Capture.BusyPolicy, def.Capture.BusyPolicy, err))
	}
	if err := v.v.Var(cfg.Capture.LockTimeout, "gt=0"); err != nil {
		notices = append(notices, reset("capture.lock_timeout", &cfg.Capture.LockTimeout, capture.DefaultLockTimeout, err))
	}
	if err := v.v.Var(cfg.Stream.StaleAfter, "gt=0"); err != nil {
		notices = append(notices, reset("stream.stale_after", &cfg.Stream.StaleAfter, def.Stream.StaleAfter, err))
	}
	if err := v.v.Var(cfg.Timelapse.Interval, "gte="+timelapse.MinInterval.String()); err != nil {
		notices = append(notices, reset("timelapse.interval", &cfg.Timelapse.Interval, def.Timelapse.Interval, err))
	}
	if err := v.v.Var(strings.ToLower(cfg.Log.Level), "omitempty,oneof=trace debug info warn error fatal panic disabled"); err != nil {
		notices = append(notices, reset("log.level", &cfg.Log.Level, def.Log.Level, err))
	}
	if err := v.v.Var(cfg.Driver, "eq="+DefaultDriver); err != nil {
		notices = append(notices, reset("driver", &cfg.Driver, def.Driver, err))
	}

	return notices
}

// ApplyServer はHTTPサーバー設定を検証する
func (v *Validator) ApplyServer(c *ServerConfig) []Notice {
	def := Default().Server
	var notices []Notice

	if err := v.v.Var(c.Host, "required,max=255,hostname_chars"); err != nil {
		notices = append(notices, reset("server.host", &c.Host, def.Host, err))
	}
	if err := v.v.Var(c.Port, "min=1,max=65535"); err != nil {
		notices = append(notices, reset("server.port", &c.Port, def.Port, err))
	}
	if err := v.v.Var(c.ReadTimeout, "gte=0"); err != nil {
		notices = append(notices, reset("server.read_timeout", &c.ReadTimeout, def.ReadTimeout, err))
	}
	if err := v.v.Var(c.WriteTimeout, "gte=0"); err != nil {
		notices = append(notices, reset("server.write_timeout", &c.WriteTimeout, def.WriteTimeout, err))
	}
	return notices
}

// ApplyVisible は可視光カメラのパラメータを検証する
func (v *Validator) ApplyVisible(c *VisibleConfig) []Notice {
	def := Default().Visible
	var notices []Notice

	if err := v.v.Var(c.DeviceIndex, "gte=0"); err != nil {
		notices = append(notices, reset("visible.device_index", &c.DeviceIndex, def.DeviceIndex, err))
	}
	if err := camera.ValidateParameter(camera.KindVisible, camera.ParamExposure, c.Exposure); err != nil {
		notices = append(notices, reset("visible.exposure", &c.Exposure, def.Exposure, err))
	}
	if err := camera.ValidateParameter(camera.KindVisible, camera.ParamGain, c.Gain); err != nil {
		notices = append(notices, reset("visible.gain", &c.Gain, def.Gain, err))
	}
	if err := camera.ValidateParameter(camera.KindVisible, camera.ParamFrameRate, c.FrameRate); err != nil {
		notices = append(notices, reset("visible.frame_rate", &c.FrameRate, def.FrameRate, err))
	}
	return notices
}

// ApplyInfrared は赤外線カメラの接続設定を検証する
func (v *Validator) ApplyInfrared(c *InfraredConfig) []Notice {
	def := Default().Infrared
	var notices []Notice

	if err := v.v.Var(c.Server, "required,max=255,hostname_chars"); err != nil {
		notices = append(notices, reset("infrared.server", &c.Server, def.Server, err))
	}
	if err := v.v.Var(c.Port, "min=1,max=65535"); err != nil {
		notices = append(notices, reset("infrared.port", &c.Port, def.Port, err))
	}
	if err := v.v.Var(c.User, "required,max=128"); err != nil {
		notices = append(notices, reset("infrared.user", &c.User, def.User, err))
	}
	if err := v.v.Var(c.Password, "required,max=256"); err != nil {
		// パスワードは通知に含めない
		c.Password = def.Password
		notices = append(notices, Notice{Field: "infrared.password", Value: "***", Default: "***", Reason: reason(err)})
	}
	if err := camera.ValidateParameter(camera.KindInfrared, camera.ParamPalette, float64(c.Palette)); err != nil {
		notices = append(notices, reset("infrared.palette", &c.Palette, def.Palette, err))
	}
	return notices
}

// ApplyStore は保存先と保存フラグを検証する
//
// 相対パスはカレントディレクトリ基準の絶対パスに変換する。
func (v *Validator) ApplyStore(c *StoreConfig) []Notice {
	def := DefaultStore()
	notices := v.applyPath("store.path", &c.Path, def.Path)

	for _, f := range []struct {
		name string
		flag *Flag
		def  Flag
	}{
		{"store.save_visible", &c.SaveVisible, def.SaveVisible},
		{"store.save_infrared", &c.SaveInfrared, def.SaveInfrared},
		{"store.save_temperature", &c.SaveTemperature, def.SaveTemperature},
	} {
		if !f.flag.Valid() {
			notices = append(notices, Notice{Field: f.name, Value: f.flag.Raw(), Default: f.def.Value, Reason: "真偽値として解釈できません"})
			*f.flag = f.def
		}
	}

	if err := v.v.Var(c.Quality, "min=1,max=100"); err != nil {
		notices = append(notices, reset("store.quality", &c.Quality, def.Quality, err))
	}
	return notices
}

// ApplyDir はリクエストで上書きされた保存先を検証して返す
//
// 空白のみの値はfallbackに戻してNoticeを返す。
func (v *Validator) ApplyDir(field, dir, fallback string) (string, []Notice) {
	notices := v.applyPath(field, &dir, fallback)
	return dir, notices
}

// applyPath は前後の空白を除いて絶対パスに変換する。使えない値はdefに戻す
func (v *Validator) applyPath(field string, p *string, def string) []Notice {
	trimmed := strings.TrimSpace(*p)
	if err := v.v.Var(trimmed, "required"); err != nil {
		return []Notice{reset(field, p, def, err)}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return []Notice{reset(field, p, def, err)}
	}
	*p = abs
	return nil
}

// reset はフィールドを既定値に戻し、Noticeを返す
func reset[T any](field string, ptr *T, def T, err error) Notice {
	n := Notice{Field: field, Value: *ptr, Default: def, Reason: reason(err)}
	*ptr = def
	return n
}

func reason(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s=%s を満たしません", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s を満たしません", fe.Tag())
	}
	return err.Error()
}
