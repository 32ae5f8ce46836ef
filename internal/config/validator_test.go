package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func noticeFields(notices []Notice) []string {
	fields := make([]string, 0, len(notices))
	for _, n := range notices {
		fields = append(fields, n.Field)
	}
	return fields
}

func TestValidator_DefaultsAreValid(t *testing.T) {
	cfg := Default()
	notices := NewValidator().Apply(cfg)
	assert.Empty(t, notices)
}

func TestValidator_ResetsInvalidValues(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Visible.Exposure = 999999
	cfg.Visible.FrameRate = 0
	cfg.Infrared.Server = "bad host!"
	cfg.Infrared.Port = 70000
	cfg.Infrared.User = ""
	cfg.Infrared.Password = strings.Repeat("x", 300)
	cfg.Infrared.Palette = 13
	cfg.Capture.BusyPolicy = "queue"
	cfg.Capture.LockTimeout = -time.Second
	cfg.Timelapse.Interval = 500 * time.Millisecond
	cfg.Driver = "hikrobot"

	notices := NewValidator().Apply(cfg)

	assert.ElementsMatch(t, []string{
		"server.port",
		"visible.exposure",
		"visible.frame_rate",
		"infrared.server",
		"infrared.port",
		"infrared.user",
		"infrared.password",
		"infrared.palette",
		"capture.busy_policy",
		"capture.lock_timeout",
		"timelapse.interval",
		"driver",
	}, noticeFields(notices))

	def := Default()
	assert.Equal(t, def.Server.Port, cfg.Server.Port)
	assert.Equal(t, def.Visible.Exposure, cfg.Visible.Exposure)
	assert.Equal(t, DefaultInfraredServer, cfg.Infrared.Server)
	assert.Equal(t, DefaultInfraredPort, cfg.Infrared.Port)
	assert.Equal(t, DefaultInfraredUser, cfg.Infrared.User)
	assert.Equal(t, DefaultInfraredPassword, cfg.Infrared.Password)
	assert.Equal(t, 1, cfg.Infrared.Palette)
	assert.Equal(t, DefaultDriver, cfg.Driver)
	assert.Equal(t, def.Timelapse.Interval, cfg.Timelapse.Interval)
	assert.NoError(t, cfg.Validate())

	for _, n := range notices {
		if n.Field == "infrared.password" {
			assert.Equal(t, "***", n.Value)
		}
		if n.Field == "server.port" {
			assert.Equal(t, -1, n.Value)
			assert.Equal(t, 8080, n.Default)
		}
	}
}

func TestValidator_ServerCharacters(t *testing.T) {
	v := NewValidator()
	for _, server := range []string{"192.168.1.168", "thermal-cam_01.local"} {
		c := InfraredConfig{Server: server, Port: 80, User: "admin", Password: "pw", Palette: 1}
		assert.Empty(t, v.ApplyInfrared(&c), server)
	}
	for _, server := range []string{"", "cam/1", strings.Repeat("a", 256)} {
		c := InfraredConfig{Server: server, Port: 80, User: "admin", Password: "pw", Palette: 1}
		assert.Equal(t, []string{"infrared.server"}, noticeFields(v.ApplyInfrared(&c)), server)
	}
}

func TestValidator_StorePath(t *testing.T) {
	v := NewValidator()

	c := DefaultStore()
	c.Path = "relative/out"
	assert.Empty(t, v.ApplyStore(&c))
	assert.True(t, filepath.IsAbs(c.Path))
	assert.True(t, strings.HasSuffix(c.Path, filepath.Join("relative", "out")))

	c = DefaultStore()
	c.Path = "   "
	assert.Equal(t, []string{"store.path"}, noticeFields(v.ApplyStore(&c)))
	assert.Equal(t, DefaultStore().Path, c.Path)
}

func TestValidator_ApplyDir(t *testing.T) {
	v := NewValidator()

	dir, notices := v.ApplyDir("dir", "  /shots ", "/records")
	assert.Empty(t, notices)
	assert.Equal(t, filepath.Clean("/shots"), dir)

	dir, notices = v.ApplyDir("dir", "relative/out", "/records")
	assert.Empty(t, notices)
	assert.True(t, filepath.IsAbs(dir))

	// 空白のみなら既定の保存先に戻す
	dir, notices = v.ApplyDir("dir", "   ", "/records")
	assert.Equal(t, []string{"dir"}, noticeFields(notices))
	assert.Equal(t, "/records", dir)
}

func TestValidator_StoreFlags(t *testing.T) {
	var c StoreConfig
	require.NoError(t, yaml.Unmarshal([]byte(`
path: /tmp/out
save_visible: maybe
save_infrared: "Y"
save_temperature: 2
quality: 0
`), &c))

	notices := NewValidator().ApplyStore(&c)
	assert.ElementsMatch(t, []string{"store.save_visible", "store.save_temperature", "store.quality"}, noticeFields(notices))

	// 不正なフラグは既定値(true)に戻る
	assert.True(t, c.SaveVisible.Value)
	assert.True(t, c.SaveVisible.Valid())
	assert.True(t, c.SaveInfrared.Value)
	assert.True(t, c.SaveTemperature.Value)
	assert.Equal(t, 95, c.Quality)
}

func TestCoerceBool(t *testing.T) {
	testCases := []struct {
		in     any
		want   bool
		wantOK bool
	}{
		{true, true, true},
		{false, false, true},
		{1, true, true},
		{0, false, true},
		{int64(1), true, true},
		{float64(0), false, true},
		{2, false, false},
		{float64(0.5), false, false},
		{"yes", true, true},
		{" ON ", true, true},
		{"y", true, true},
		{"True", true, true},
		{"off", false, true},
		{"n", false, true},
		{"0", false, true},
		{"maybe", false, false},
		{"", false, false},
		{nil, false, false},
	}

	for _, tc := range testCases {
		got, ok := CoerceBool(tc.in)
		assert.Equal(t, tc.wantOK, ok, "%#v", tc.in)
		assert.Equal(t, tc.want, got, "%#v", tc.in)
	}
}

func TestFlagJSON(t *testing.T) {
	var c StoreConfig
	require.NoError(t, json.Unmarshal([]byte(`{"path":"/x","save_visible":"on","save_infrared":0,"save_temperature":"nope"}`), &c))
	assert.True(t, c.SaveVisible.Value)
	assert.False(t, c.SaveInfrared.Value)
	assert.True(t, c.SaveInfrared.Valid())
	assert.False(t, c.SaveTemperature.Valid())
	assert.Equal(t, "nope", c.SaveTemperature.Raw())

	out, err := json.Marshal(NewFlag(true))
	require.NoError(t, err)
	assert.Equal(t, "true", string(out))
}
