// Package transcode wraps the external ffmpeg/ffprobe tools behind a small
// interface so the pipeline stays codec-agnostic and testable with a fake.
package transcode

import "context"

// Transcoder is the opaque media capability the pipeline depends on. All
// operations are blocking and bounded by internal timeouts; a timeout
// surfaces as an ordinary error.
type Transcoder interface {
	// ProbeDuration returns the container duration in seconds. It fails
	// loudly when no duration can be read; it never silently returns 0.
	ProbeDuration(ctx context.Context, path string) (float64, error)

	// Normalize scales in preserving aspect ratio, pads to the exact target
	// frame, enforces the fixed frame rate, strips audio, and truncates to
	// targetSeconds. Re-running with the same inputs yields an
	// equivalent-duration output.
	Normalize(ctx context.Context, in, out string, targetSeconds float64) error

	// ConcatStreamCopy joins inputs in order without re-encoding. All
	// inputs must share codec parameters, which holds because every input
	// passed through the same Normalize step.
	ConcatStreamCopy(ctx context.Context, inputs []string, out string) error

	// Mux combines video and audio into out, copying the video stream and
	// encoding the audio track, truncated to the shorter stream.
	Mux(ctx context.Context, video, audio, out string) error

	// Trim rewrites in to out capped at maxSeconds.
	Trim(ctx context.Context, in, out string, maxSeconds float64) error
}

// stderrTailLen bounds how much transcoder output is carried in errors so
// diagnostics never balloon a response.
const stderrTailLen = 500

// Tail returns the last stderrTailLen bytes of s.
func Tail(s string) string {
	if len(s) <= stderrTailLen {
		return s
	}
	return s[len(s)-stderrTailLen:]
}
