// Package overlay 定义音轨叠加的数据模型、注册表以及工程文件格式。
package overlay

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxTextLength 是解说文本允许的最大字符数。
const MaxTextLength = 100

// Kind 区分两种叠加音轨。
type Kind int

const (
	// KindCommentary 由文本合成的解说。
	KindCommentary Kind = iota
	// KindFile 外部音频文件。
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindCommentary:
		return "Commentary"
	case KindFile:
		return "FileTrack"
	}
	return "Unknown"
}

// tag 返回工程文件中的行前缀。
func (k Kind) tag() string {
	if k == KindCommentary {
		return "C"
	}
	return "F"
}

// VoiceStyle 合成语音的音色风格。
type VoiceStyle int

const (
	VoiceRobotic VoiceStyle = iota
	VoiceBritish
	VoiceRegional
)

var voiceStyleNames = [...]string{"Robotic", "British", "Regional"}

func (v VoiceStyle) String() string {
	if v >= 0 && int(v) < len(voiceStyleNames) {
		return voiceStyleNames[v]
	}
	return "Unknown"
}

// ParseVoiceStyle 按名称（不区分大小写）解析音色风格。
func ParseVoiceStyle(s string) (VoiceStyle, error) {
	for i, name := range voiceStyleNames {
		if strings.EqualFold(name, s) {
			return VoiceStyle(i), nil
		}
	}
	return VoiceRobotic, fmt.Errorf("未知的音色: %q", s)
}

// Pitch 合成语音的音高。
type Pitch int

const (
	PitchNormal Pitch = iota
	PitchLow
	PitchHigh
)

var pitchNames = [...]string{"Normal", "Low", "High"}

func (p Pitch) String() string {
	if p >= 0 && int(p) < len(pitchNames) {
		return pitchNames[p]
	}
	return "Unknown"
}

// ParsePitch 按名称（不区分大小写）解析音高。
func ParsePitch(s string) (Pitch, error) {
	for i, name := range pitchNames {
		if strings.EqualFold(name, s) {
			return Pitch(i), nil
		}
	}
	return PitchNormal, fmt.Errorf("未知的音高: %q", s)
}

// Voice 解说的合成参数。
type Voice struct {
	Style VoiceStyle
	Pitch Pitch
}

func (v Voice) String() string {
	return v.Style.String() + "/" + v.Pitch.String()
}

var (
	// ErrNotFound 指定 ID 的叠加音轨不存在。
	ErrNotFound = errors.New("叠加音轨不存在")
	// ErrTextTooLong 解说文本超过 MaxTextLength。
	ErrTextTooLong = fmt.Errorf("解说文本不能超过 %d 个字符", MaxTextLength)
	// ErrTextControl 解说文本包含制表符或换行（会破坏工程文件格式）。
	ErrTextControl = errors.New("解说文本不能包含制表符或换行")
	// ErrNegativeOffset 起始偏移为负数。
	ErrNegativeOffset = errors.New("起始时间不能为负数")
	// ErrVolumeRange 音量超出 [0,100]。
	ErrVolumeRange = errors.New("音量必须在 0 到 100 之间")
)

// Overlay 是挂在视频时间轴上的一条音轨：合成解说或外部文件。
// 两种变体共享同一组字段，Text/Voice 只对解说有意义。
type Overlay struct {
	ID          int
	Kind        Kind
	StartOffset float64 // 秒，>= 0
	Volume      int     // 百分比，0-100
	Preview     bool
	SourcePath  string

	// Duration 为探测得到的音频时长（秒），DurationKnown 为 false 时无意义。
	Duration      float64
	DurationKnown bool

	Text  string
	Voice Voice
}

// NewCommentary 创建默认参数的解说（音量 100%，参与预览）。
func NewCommentary(text string, voice Voice) Overlay {
	return Overlay{Kind: KindCommentary, Volume: 100, Preview: true, Text: text, Voice: voice}
}

// NewFileTrack 创建默认参数的文件音轨。
func NewFileTrack(path string) Overlay {
	return Overlay{Kind: KindFile, Volume: 100, Preview: true, SourcePath: path}
}

// Source 返回可供播放/导出的音频路径，尚未生成时为空。
func (o Overlay) Source() string {
	return o.SourcePath
}

// IsCommentary 是否为合成解说。
func (o Overlay) IsCommentary() bool {
	return o.Kind == KindCommentary
}

// VolumeFraction 返回 [0,1] 区间的音量系数。
func (o Overlay) VolumeFraction() float64 {
	return float64(o.Volume) / 100
}

// Name 返回用于进度提示的显示名。
func (o Overlay) Name() string {
	if o.SourcePath != "" {
		return filepath.Base(o.SourcePath)
	}
	if o.IsCommentary() {
		return fmt.Sprintf("commentary%d", o.ID)
	}
	return fmt.Sprintf("overlay%d", o.ID)
}

// ExceedsVideo 报告音轨结束时间是否超过视频总长。时长未知时返回 false。
func (o Overlay) ExceedsVideo(total float64) bool {
	if !o.DurationKnown || total <= 0 {
		return false
	}
	return o.StartOffset+o.Duration > total
}

// Validate 检查叠加音轨的不变量。
func (o Overlay) Validate() error {
	if o.StartOffset < 0 || math.IsNaN(o.StartOffset) || math.IsInf(o.StartOffset, 0) {
		return ErrNegativeOffset
	}
	if o.Volume < 0 || o.Volume > 100 {
		return ErrVolumeRange
	}
	if o.IsCommentary() {
		return ValidateText(o.Text)
	}
	return nil
}

// ValidateText 在编辑时校验解说文本，超长直接拒绝而不是截断。
func ValidateText(text string) error {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return ErrTextTooLong
	}
	if strings.ContainsAny(text, "\t\r\n") {
		return ErrTextControl
	}
	return nil
}

// ClampVolume 将任意整数钳位到 [0,100]。
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
