package overlay

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrBadHeader 工程文件首行（视频路径）无法解析，整个加载中止。
var ErrBadHeader = errors.New("工程文件首行不是有效的视频路径")

// ParseError 描述工程文件中被跳过的一行。
type ParseError struct {
	Line   int // 从 1 开始
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("第 %d 行: %s", e.Line, e.Reason)
}

// Project 是工程文件的内存表示。
type Project struct {
	VideoPath string
	Overlays  []Overlay
}

// Serialize 编码工程文件：首行为视频路径（可为空），之后每行一个叠加音轨。
//
//	C<TAB>position<TAB>text<TAB>startTime<TAB>volume
//	F<TAB>filePath<TAB>startTime<TAB>volume
func Serialize(videoPath string, overlays []Overlay) string {
	var b strings.Builder
	b.WriteString(videoPath)
	b.WriteByte('\n')
	for _, o := range overlays {
		b.WriteString(FormatLine(o))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatLine 编码单个叠加音轨。
func FormatLine(o Overlay) string {
	start := strconv.FormatFloat(o.StartOffset, 'f', -1, 64)
	volume := strconv.Itoa(o.Volume)
	if o.IsCommentary() {
		return strings.Join([]string{o.Kind.tag(), strconv.Itoa(o.ID), o.Text, start, volume}, "\t")
	}
	return strings.Join([]string{o.Kind.tag(), o.SourcePath, start, volume}, "\t")
}

// Parse 解析工程文件文本。
// 格式错误的叠加音轨行会被跳过并通过 []*ParseError 返回；
// 只有首行异常时返回 ErrBadHeader。
func Parse(text string) (*Project, []*ParseError, error) {
	if text == "" {
		return nil, nil, ErrBadHeader
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, nil, ErrBadHeader
	}
	header := strings.TrimRight(scanner.Text(), "\r")
	if strings.Contains(header, "\t") {
		return nil, nil, fmt.Errorf("%w: %q", ErrBadHeader, header)
	}

	p := &Project{VideoPath: header}
	var skipped []*ParseError

	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		o, err := ParseLine(line)
		if err != nil {
			skipped = append(skipped, &ParseError{Line: lineNo, Text: line, Reason: err.Error()})
			continue
		}
		p.Overlays = append(p.Overlays, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("读取工程文件失败: %w", err)
	}

	return p, skipped, nil
}

// ParseLine 解析单行叠加音轨。
func ParseLine(line string) (Overlay, error) {
	fields := strings.Split(line, "\t")

	var o Overlay
	switch fields[0] {
	case "C":
		if len(fields) != 5 {
			return o, fmt.Errorf("解说行需要 5 个字段，实际 %d 个", len(fields))
		}
		position, err := strconv.Atoi(fields[1])
		if err != nil || position < 0 {
			return o, fmt.Errorf("无效的 position %q", fields[1])
		}
		o = NewCommentary(fields[2], Voice{})
		o.ID = position
		if err := parseTiming(&o, fields[3], fields[4]); err != nil {
			return o, err
		}
	case "F":
		if len(fields) != 4 {
			return o, fmt.Errorf("文件行需要 4 个字段，实际 %d 个", len(fields))
		}
		if fields[1] == "" {
			return o, errors.New("文件路径为空")
		}
		o = NewFileTrack(fields[1])
		if err := parseTiming(&o, fields[2], fields[3]); err != nil {
			return o, err
		}
	default:
		return o, fmt.Errorf("未知的行前缀 %q", fields[0])
	}

	if err := o.Validate(); err != nil {
		return o, err
	}
	return o, nil
}

func parseTiming(o *Overlay, start, volume string) error {
	s, err := strconv.ParseFloat(start, 64)
	if err != nil {
		return fmt.Errorf("无效的起始时间 %q", start)
	}
	v, err := strconv.Atoi(volume)
	if err != nil {
		return fmt.Errorf("无效的音量 %q", volume)
	}
	o.StartOffset = s
	o.Volume = v
	return nil
}

// ReadFile 读取并解析工程文件。
func ReadFile(path string) (*Project, []*ParseError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("读取工程文件 %s 失败: %w", path, err)
	}
	return Parse(string(data))
}

// WriteFile 将工程写入文件。
func WriteFile(path, videoPath string, overlays []Overlay) error {
	if err := os.WriteFile(path, []byte(Serialize(videoPath, overlays)), 0644); err != nil {
		return fmt.Errorf("写入工程文件 %s 失败: %w", path, err)
	}
	return nil
}
