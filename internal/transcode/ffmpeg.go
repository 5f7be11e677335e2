package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"clipsmith/internal/logging"
)

// ffmpegSem limits concurrent ffmpeg processes to 1. Each transcode is the
// dominant memory consumer on the host; running them one at a time trades
// latency for a bounded peak footprint and avoids
// "pthread_create() failed: Resource temporarily unavailable" under load.
var ffmpegSem = make(chan struct{}, 1)

// FFmpeg shells out to ffmpeg/ffprobe. Codec specifics live here as
// configuration, not in the pipeline.
type FFmpeg struct {
	Width         int
	Height        int
	FrameRate     int
	ProbeTimeout  time.Duration
	EncodeTimeout time.Duration
	log           *logging.Logger
}

func NewFFmpeg(width, height, frameRate int, probeTimeout, encodeTimeout time.Duration, log *logging.Logger) *FFmpeg {
	return &FFmpeg{
		Width:         width,
		Height:        height,
		FrameRate:     frameRate,
		ProbeTimeout:  probeTimeout,
		EncodeTimeout: encodeTimeout,
		log:           log,
	}
}

func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	ctxProbe, cancel := context.WithTimeout(ctx, f.ProbeTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctxProbe, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, Tail(stderr.String()))
	}
	raw := strings.TrimSpace(string(out))
	if raw == "" {
		return 0, fmt.Errorf("ffprobe %s: no readable duration: %s", path, Tail(stderr.String()))
	}
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil || duration <= 0 {
		return 0, fmt.Errorf("ffprobe %s: unparseable duration %q", path, raw)
	}
	return duration, nil
}

func (f *FFmpeg) Normalize(ctx context.Context, in, out string, targetSeconds float64) error {
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		f.Width, f.Height, f.Width, f.Height,
	)
	return f.run(ctx, out,
		"-i", in,
		"-vf", filter,
		"-r", strconv.Itoa(f.FrameRate),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "28",
		"-an",
		"-t", formatSeconds(targetSeconds),
	)
}

func (f *FFmpeg) ConcatStreamCopy(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("concat: no inputs")
	}
	listPath := filepath.Join(filepath.Dir(out), "concat.txt")
	if err := writeConcatList(listPath, inputs); err != nil {
		return err
	}
	defer os.Remove(listPath)

	return f.run(ctx, out,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
	)
}

func (f *FFmpeg) Mux(ctx context.Context, video, audio, out string) error {
	return f.run(ctx, out,
		"-i", video,
		"-i", audio,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "128k",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-movflags", "+faststart",
	)
}

func (f *FFmpeg) Trim(ctx context.Context, in, out string, maxSeconds float64) error {
	return f.run(ctx, out,
		"-i", in,
		"-t", formatSeconds(maxSeconds),
		"-c", "copy",
	)
}

// run executes ffmpeg with the given input args plus the shared preamble
// and output path, holding the process semaphore for the duration. The
// output file must exist and be non-empty afterwards.
func (f *FFmpeg) run(ctx context.Context, out string, args ...string) error {
	ffmpegSem <- struct{}{}
	defer func() { <-ffmpegSem }()

	ctxRun, cancel := context.WithTimeout(ctx, f.EncodeTimeout)
	defer cancel()

	full := append([]string{
		"-hide_banner",
		"-loglevel", "error",
		"-threads", "1",
		"-filter_threads", "1",
		"-y",
	}, args...)
	full = append(full, out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctxRun, "ffmpeg", full...)
	cmd.Stderr = &stderr

	f.log.Infof("ffmpeg: %s", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		errMsg := Tail(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		return fmt.Errorf("ffmpeg: %s", errMsg)
	}

	info, err := os.Stat(out)
	if err != nil {
		return fmt.Errorf("ffmpeg did not create output file %s: %w", out, err)
	}
	if info.Size() == 0 {
		os.Remove(out)
		return fmt.Errorf("ffmpeg produced empty output file %s: %s", out, Tail(stderr.String()))
	}
	return nil
}

// writeConcatList writes a concat-demuxer file list. Single quotes in paths
// are escaped per the demuxer's quoting rules.
func writeConcatList(path string, inputs []string) error {
	var b strings.Builder
	for _, in := range inputs {
		escaped := strings.ReplaceAll(in, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64)
}
