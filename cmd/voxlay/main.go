package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iabetor/voxlay/internal/clock"
	"github.com/iabetor/voxlay/internal/config"
	"github.com/iabetor/voxlay/internal/database"
	"github.com/iabetor/voxlay/internal/logger"
	"github.com/iabetor/voxlay/internal/playback"
	"github.com/iabetor/voxlay/internal/probe"
	"github.com/iabetor/voxlay/internal/session"
)

func main() {
	configPath := flag.String("config", "configs/voxlay.yaml", "配置文件路径")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// .env 中的密钥供配置文件 ${VAR} 展开使用
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "读取 .env 失败: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开数据库失败: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("[main] 收到信号 %v，正在关闭...", sig)
		cancel()
	}()

	wall := clock.NewWall(0)
	sess, err := session.NewFromConfig(cfg, db, wall)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}

	code := 0
	switch args[0] {
	case "inspect":
		code = withProject(ctx, sess, args, 2, func() error { return cmdInspect(sess, wall) })
	case "export":
		code = withProject(ctx, sess, args, 3, func() error { return cmdExport(ctx, sess, args[2]) })
	case "preview":
		code = withProject(ctx, sess, args, 2, func() error { return cmdPreview(ctx, sess, wall) })
	case "say":
		code = withProject(ctx, sess, args, 4, func() error { return cmdSay(ctx, sess, args[2], args[3]) })
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n", args[0])
		printUsage()
		code = 1
	}

	sess.Close()
	if code != 0 {
		db.Close()
		logger.Sync()
		os.Exit(code)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "voxlay 视频叠加音轨工具")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "用法: voxlay [-config <path>] <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "命令:")
	fmt.Fprintln(os.Stderr, "  inspect <工程>              列出叠加音轨及其时长")
	fmt.Fprintln(os.Stderr, "  export <工程> <输出>        合成最终视频")
	fmt.Fprintln(os.Stderr, "  preview <工程>              从标准输入控制预览播放")
	fmt.Fprintln(os.Stderr, "  say <工程> <id> <输出>      把解说音频另存为 mp3")
}

// withProject 校验参数个数、加载工程并等待合成与探测完成后执行 fn。
func withProject(ctx context.Context, sess *session.Session, args []string, want int, fn func() error) int {
	if len(args) < want {
		printUsage()
		return 1
	}

	skipped, err := sess.Load(ctx, args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载工程失败: %v\n", err)
		return 1
	}
	for _, pe := range skipped {
		fmt.Fprintf(os.Stderr, "跳过 %s: %q\n", pe, pe.Text)
	}
	sess.Wait()

	if err := fn(); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintf(os.Stderr, "%s 失败: %v\n", args[0], err)
		return 1
	}
	return 0
}

func cmdInspect(sess *session.Session, wall *clock.Wall) error {
	video := sess.VideoPath()
	if video == "" {
		video = "(无)"
	}
	total := wall.TotalDuration()
	fmt.Printf("视频: %s  时长: %s\n", video, probe.Format(total, total > 0))

	list := sess.Overlays()
	if len(list) == 0 {
		fmt.Println("没有叠加音轨。")
		return nil
	}

	fmt.Println("  ID  | 类型       | 起始     | 音量 | 时长       | 内容")
	fmt.Println("  ----+------------+----------+------+------------+----------")
	for _, o := range list {
		content := o.SourcePath
		if o.IsCommentary() {
			content = fmt.Sprintf("%q (%s)", o.Text, o.Voice)
		}
		fmt.Printf("  %-4d| %-11s| %-9s| %3d%% | %-11s| %s\n",
			o.ID, o.Kind, clock.Format(o.StartOffset), o.Volume,
			probe.Format(o.Duration, o.DurationKnown), content)
	}

	for _, o := range sess.ExceedingVideo() {
		fmt.Printf("警告: %s 在视频结束后仍在播放\n", o.Name())
	}
	return nil
}

func cmdExport(ctx context.Context, sess *session.Session, output string) error {
	job, err := sess.Export(ctx, output)
	if err != nil {
		return err
	}
	fmt.Printf("导出任务 %s -> %s\n", job.ID, job.Spec.OutputPath)
	for ev := range job.Events() {
		fmt.Println(ev)
	}
	return job.Wait()
}

func cmdSay(ctx context.Context, sess *session.Session, idArg, output string) error {
	id, err := strconv.Atoi(idArg)
	if err != nil {
		return fmt.Errorf("无效的 id %q", idArg)
	}
	path, err := sess.SaveCommentary(ctx, id, output)
	if err != nil {
		return err
	}
	fmt.Printf("已保存: %s\n", path)
	return nil
}

// cmdPreview 以墙钟驱动预览，从标准输入逐行读取控制命令。
func cmdPreview(ctx context.Context, sess *session.Session, wall *clock.Wall) error {
	sched := sess.Playback()
	sched.SetOnChange(func(from, to playback.State) {
		fmt.Printf("[%s] %s -> %s\n", clock.Format(wall.Position()), from, to)
	})

	go func() {
		for pos := range sched.Positions() {
			fmt.Printf("\r%s / %s", clock.Format(pos), clock.Format(wall.TotalDuration()))
		}
	}()

	fmt.Println("命令: p 播放/暂停, s 停止, f 快进, r 快退, + 前进, - 后退, g <秒> 跳转, a <id> 试听, q 退出")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleCommand(sess, sched, line); quit {
				return nil
			}
		}
	}
}

func handleCommand(sess *session.Session, sched *playback.Scheduler, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "p":
		sched.TogglePlay()
	case "s":
		sched.Stop()
	case "f":
		sched.FastForward()
	case "r":
		sched.Rewind()
	case "+":
		sched.JumpForward()
	case "-":
		sched.JumpBackward()
	case "g":
		if len(fields) < 2 {
			fmt.Println("用法: g <秒>")
			return false
		}
		sec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Printf("无效的时间 %q\n", fields[1])
			return false
		}
		sched.BeginSeek()
		sched.Seek(sec)
	case "a":
		if len(fields) < 2 {
			fmt.Println("用法: a <id>")
			return false
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Printf("无效的 id %q\n", fields[1])
			return false
		}
		if err := sess.Audition(id); err != nil {
			fmt.Printf("试听失败: %v\n", err)
		}
	case "q":
		return true
	default:
		fmt.Printf("未知命令 %q\n", fields[0])
	}
	return false
}
