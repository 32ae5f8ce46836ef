package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Flag は緩い表記を受け付ける真偽値
//
// YAML/JSONでは 1/0, true/false, yes/no, on/off, y/n のいずれも受け付ける。
// 解釈できない値はエラーにせず記録し、Validator が既定値に戻す。
type Flag struct {
	Value   bool
	invalid string
}

// NewFlag は値を持つFlagを作成する
func NewFlag(v bool) Flag {
	return Flag{Value: v}
}

// Valid は入力が真偽値として解釈できたかを返す
func (f Flag) Valid() bool {
	return f.invalid == ""
}

// Raw は解釈できなかった入力を返す
func (f Flag) Raw() string {
	return f.invalid
}

func (f Flag) String() string {
	if !f.Valid() {
		return f.invalid
	}
	return strconv.FormatBool(f.Value)
}

// MarshalYAML はboolとして書き出す
func (f Flag) MarshalYAML() (any, error) {
	return f.Value, nil
}

// UnmarshalYAML はスカラー値をCoerceBoolで解釈する
func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		f.invalid = fmt.Sprintf("<%s>", node.ShortTag())
		return nil
	}
	f.set(node.Value)
	return nil
}

// MarshalJSON はboolとして書き出す
func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value)
}

// UnmarshalJSON は文字列・数値・真偽値をCoerceBoolで解釈する
func (f *Flag) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("フラグの解析に失敗: %w", err)
	}
	f.set(v)
	return nil
}

func (f *Flag) set(v any) {
	if b, ok := CoerceBool(v); ok {
		f.Value = b
		f.invalid = ""
		return
	}
	f.Value = false
	f.invalid = fmt.Sprint(v)
	if f.invalid == "" {
		f.invalid = `""`
	}
}

// CoerceBool は様々な表記を真偽値に変換する
//
// 解釈できない場合は ok=false を返す。
func CoerceBool(v any) (value bool, ok bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int:
		return intBool(int64(t))
	case int64:
		return intBool(t)
	case float64:
		if t == 0 || t == 1 {
			return t == 1, true
		}
		return false, false
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on", "y":
			return true, true
		case "0", "false", "no", "off", "n":
			return false, true
		}
	}
	return false, false
}

func intBool(n int64) (bool, bool) {
	switch n {
	case 0:
		return false, true
	case 1:
		return true, true
	}
	return false, false
}
