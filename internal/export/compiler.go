// Package export 把视频与叠加音轨编译为一条 ffmpeg 合并命令并执行。
package export

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iabetor/voxlay/internal/overlay"
)

// DefaultExt 导出文件的默认扩展名。
const DefaultExt = ".mp4"

var (
	// ErrNoVideo 没有可导出的视频。
	ErrNoVideo = errors.New("未选择视频")
	// ErrNoOutput 输出路径为空。
	ErrNoOutput = errors.New("未指定输出路径")
)

// Input 是合并命令的一路输入。视频的 OverlayID 为 -1。
type Input struct {
	Path      string
	Offset    float64
	OverlayID int
	Name      string
}

// CommandSpec 是编译得到的合并命令，同样的输入总是得到同样的参数。
type CommandSpec struct {
	VideoPath  string
	OutputPath string
	Inputs     []Input
	Maps       []string
	// Considered 是编译时检查过的全部叠加音轨名称，包括尚无音频而被跳过的。
	Considered []string
}

// Compile 按注册顺序收集有音频路径的叠加音轨，生成合并命令。
// 偏移大于 0 的音轨在其 -i 之前加 -itsoffset；outputPath 缺少 ext 时自动补上。
func Compile(videoPath string, overlays []overlay.Overlay, outputPath, ext string) (*CommandSpec, error) {
	if videoPath == "" {
		return nil, ErrNoVideo
	}
	if strings.TrimSpace(outputPath) == "" {
		return nil, ErrNoOutput
	}
	if ext == "" {
		ext = DefaultExt
	}

	spec := &CommandSpec{
		VideoPath:  videoPath,
		OutputPath: EnsureExt(outputPath, ext),
		Inputs:     []Input{{Path: videoPath, OverlayID: -1, Name: "video"}},
	}
	for _, o := range overlays {
		spec.Considered = append(spec.Considered, o.Name())
		if o.Source() == "" {
			continue
		}
		spec.Inputs = append(spec.Inputs, Input{
			Path:      o.Source(),
			Offset:    o.StartOffset,
			OverlayID: o.ID,
			Name:      o.Name(),
		})
	}
	for i := range spec.Inputs {
		spec.Maps = append(spec.Maps, fmt.Sprintf("%d:0", i))
	}
	return spec, nil
}

// Tracks 返回参与合并的叠加音轨（不含视频）。
func (c *CommandSpec) Tracks() []Input {
	return c.Inputs[1:]
}

// Delays 返回每路叠加音轨的偏移，与 Tracks 一一对应。
func (c *CommandSpec) Delays() []float64 {
	delays := make([]float64, 0, len(c.Inputs)-1)
	for _, in := range c.Tracks() {
		delays = append(delays, in.Offset)
	}
	return delays
}

// Args 返回 ffmpeg 参数（不含可执行文件名）。
func (c *CommandSpec) Args() []string {
	args := []string{"-hide_banner", "-nostdin", "-y"}
	for _, in := range c.Inputs {
		if in.Offset > 0 {
			args = append(args, "-itsoffset", strconv.FormatFloat(in.Offset, 'f', -1, 64))
		}
		args = append(args, "-i", in.Path)
	}
	for _, m := range c.Maps {
		args = append(args, "-map", m)
	}
	if n := len(c.Tracks()); n > 0 {
		args = append(args,
			"-c:v", "copy",
			"-async", "1",
			"-filter_complex", fmt.Sprintf("amix=inputs=%d", n+1),
		)
	}
	return append(args, c.OutputPath)
}

// String 返回可直接在 shell 中阅读的命令行，仅用于日志。
func (c *CommandSpec) String() string {
	args := c.Args()
	quoted := make([]string, len(args))
	for i, a := range args {
		if strings.ContainsAny(a, " \t'\"") {
			a = strconv.Quote(a)
		}
		quoted[i] = a
	}
	return strings.Join(quoted, " ")
}

// EnsureExt 在 path 不以 ext 结尾（不区分大小写）时追加 ext。
func EnsureExt(path, ext string) string {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if strings.HasSuffix(strings.ToLower(path), strings.ToLower(ext)) {
		return path
	}
	return path + ext
}
