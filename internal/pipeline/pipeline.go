// Package pipeline sequences the stages that turn one validated job into a
// finished vertical video: acquire audio, probe and cap its duration, fetch
// and normalize each clip, stream-copy-concatenate the survivors, and mux
// the result with the audio track. Stages run strictly sequentially and
// intermediates are deleted as soon as they are consumed; the whole run is
// designed around a tight memory and disk ceiling, not throughput.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"clipsmith/internal"
	"clipsmith/internal/fetch"
	"clipsmith/internal/logging"
	"clipsmith/internal/model"
	"clipsmith/internal/transcode"
	"clipsmith/internal/tts"
	"clipsmith/internal/workspace"
)

type Orchestrator struct {
	cfg     internal.Config
	trans   transcode.Transcoder
	fetcher *fetch.Fetcher
	speech  *tts.Client
	log     *logging.Logger
}

func NewOrchestrator(cfg internal.Config, trans transcode.Transcoder, fetcher *fetch.Fetcher, speech *tts.Client, log *logging.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, trans: trans, fetcher: fetcher, speech: speech, log: log}
}

// Run executes the full pipeline for one job inside its workspace and
// returns the final artifact path. The caller owns workspace teardown; Run
// never removes the workspace itself, only the intermediates inside it.
// Failures come back as *Error with a kind and bounded detail.
func (o *Orchestrator) Run(ctx context.Context, job *model.Job, ws *workspace.Workspace) (string, error) {
	job.State = model.StateAcquiringAudio
	audioPath, err := o.acquireAudio(ctx, job, ws)
	if err != nil {
		job.State = model.StateFailed
		return "", err
	}

	job.State = model.StateProbing
	duration, audioPath, err := o.probeAndCap(ctx, job, ws, audioPath)
	if err != nil {
		job.State = model.StateFailed
		return "", err
	}

	job.State = model.StateProcessingClips
	survivors, err := o.processClips(ctx, job, ws, duration)
	if err != nil {
		job.State = model.StateFailed
		return "", err
	}

	job.State = model.StateConcatenating
	concatPath := ws.Path("concat.mp4")
	inputs := lo.Map(survivors, func(t *model.ClipTask, _ int) string { return t.NormalizedPath })
	if err := o.trans.ConcatStreamCopy(ctx, inputs, concatPath); err != nil {
		job.State = model.StateFailed
		return "", wrapf(KindAssembly, err, "concatenation failed")
	}
	// Normalized segments are consumed; drop them before the mux needs room.
	for _, in := range inputs {
		os.Remove(in)
	}

	job.State = model.StateMuxing
	finalPath := ws.Path(fmt.Sprintf("short_%s.mp4", job.ID))
	if err := o.trans.Mux(ctx, concatPath, audioPath, finalPath); err != nil {
		job.State = model.StateFailed
		return "", wrapf(KindAssembly, err, "mux failed")
	}
	os.Remove(concatPath)
	os.Remove(audioPath)

	job.State = model.StateComplete
	o.log.Infof("[%s] assembly complete: %s", job.ID, finalPath)
	return finalPath, nil
}

// acquireAudio materializes the job's audio source as a file in the
// workspace. Exactly one branch runs; precedence was resolved at
// validation time.
func (o *Orchestrator) acquireAudio(ctx context.Context, job *model.Job, ws *workspace.Workspace) (string, error) {
	switch job.AudioKind {
	case model.AudioFromFile:
		// Uploaded audio was already streamed into the workspace.
		return job.AudioPath, nil

	case model.AudioFromScript:
		dest := ws.Path("audio.mp3")
		if err := o.speech.Synthesize(ctx, job.Script, dest); err != nil {
			if errors.Is(err, tts.ErrNotConfigured) {
				return "", wrapf(KindInput, err, "script provided but TTS is not configured")
			}
			return "", wrapf(KindAcquisition, err, "TTS failed")
		}
		o.log.Infof("[%s] audio synthesized from script (%d chars)", job.ID, len(job.Script))
		return dest, nil

	case model.AudioFromURL:
		dest := ws.Path("audio.wav")
		if err := o.fetcher.Fetch(ctx, job.AudioURL, dest); err != nil {
			return "", wrapf(KindAcquisition, err, "audio download failed")
		}
		return dest, nil

	case model.AudioFromBytes:
		dest := ws.Path("audio.wav")
		if err := os.WriteFile(dest, job.AudioBytes, 0o644); err != nil {
			return "", wrapf(KindAcquisition, err, "write decoded audio")
		}
		o.log.Infof("[%s] audio decoded from base64 (%d bytes)", job.ID, len(job.AudioBytes))
		return dest, nil
	}
	return "", failf(KindInput, "", "no audio provided")
}

// probeAndCap reads the audio duration and, when it exceeds the configured
// ceiling, trims the track and adopts the trimmed duration as authoritative.
func (o *Orchestrator) probeAndCap(ctx context.Context, job *model.Job, ws *workspace.Workspace, audioPath string) (float64, string, error) {
	duration, err := o.trans.ProbeDuration(ctx, audioPath)
	if err != nil {
		return 0, "", wrapf(KindProbe, err, "failed to determine audio duration")
	}
	o.log.Infof("[%s] audio duration: %.2fs", job.ID, duration)

	if duration <= o.cfg.MaxDurationS {
		return duration, audioPath, nil
	}

	trimmed := ws.Path("audio_trimmed" + filepath.Ext(audioPath))
	if err := o.trans.Trim(ctx, audioPath, trimmed, o.cfg.MaxDurationS); err != nil {
		return 0, "", wrapf(KindProbe, err, "failed to trim audio to %.0fs", o.cfg.MaxDurationS)
	}
	os.Remove(audioPath)
	o.log.Infof("[%s] audio trimmed from %.2fs to ceiling %.2fs", job.ID, duration, o.cfg.MaxDurationS)
	return o.cfg.MaxDurationS, trimmed, nil
}

// processClips runs every clip sequentially and returns the survivors in
// input order. The per-clip target is duration / cappedClipCount computed
// up front; skipped clips simply shorten the final video rather than
// redistributing their share among the survivors.
func (o *Orchestrator) processClips(ctx context.Context, job *model.Job, ws *workspace.Workspace, duration float64) ([]*model.ClipTask, error) {
	urls := job.VideoURLs
	if len(urls) > o.cfg.MaxClips {
		o.log.Infof("[%s] clip list capped from %d to %d", job.ID, len(urls), o.cfg.MaxClips)
		urls = urls[:o.cfg.MaxClips]
	}

	targetSeconds := duration / float64(len(urls))
	o.log.Infof("[%s] processing %d clip(s), %.2fs each", job.ID, len(urls), targetSeconds)

	tasks := make([]*model.ClipTask, len(urls))
	for i, url := range urls {
		tasks[i] = &model.ClipTask{Index: i, URL: url}
		// One at a time: concurrent transcodes would multiply peak memory.
		o.processClip(ctx, ws, tasks[i], targetSeconds)
	}

	survivors := lo.Filter(tasks, func(t *model.ClipTask, _ int) bool { return t.Outcome == model.ClipOK })
	if len(survivors) == 0 {
		var lastErr error
		for _, t := range tasks {
			if t.Err != nil {
				lastErr = t.Err
			}
		}
		return nil, wrapf(KindAllClipsFailed, lastErr, "all %d clip(s) failed", len(tasks))
	}
	if len(survivors) < len(tasks) {
		o.log.Warnf("[%s] %d/%d clip(s) skipped; final video will be shorter", job.ID, len(tasks)-len(survivors), len(tasks))
	}
	return survivors, nil
}
