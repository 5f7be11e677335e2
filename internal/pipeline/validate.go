package pipeline

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"clipsmith/internal/model"
)

// NewJob validates an assemble request at the boundary and produces a typed
// job, so the pipeline never sees a loosely-shaped payload. Audio source
// precedence is script, then audio_url, then audio_base64; a script is only
// usable when TTS is configured.
func NewJob(req model.AssembleRequest, ttsConfigured bool) (*model.Job, error) {
	job := &model.Job{
		ID:     uuid.NewString()[:8],
		State:  model.StateCreated,
		Title:  req.Title,
		Source: req.Source,
	}

	switch {
	case strings.TrimSpace(req.Script) != "" && ttsConfigured:
		job.AudioKind = model.AudioFromScript
		job.Script = req.Script
	case strings.TrimSpace(req.AudioURL) != "":
		job.AudioKind = model.AudioFromURL
		job.AudioURL = strings.TrimSpace(req.AudioURL)
	case req.AudioBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return nil, wrapf(KindInput, err, "invalid audio_base64")
		}
		if len(decoded) == 0 {
			return nil, failf(KindInput, "", "audio_base64 decoded to zero bytes")
		}
		job.AudioKind = model.AudioFromBytes
		job.AudioBytes = decoded
	case strings.TrimSpace(req.Script) != "":
		return nil, failf(KindInput, "", "script provided but TTS is not configured")
	default:
		return nil, failf(KindInput, "", "no audio provided")
	}

	job.VideoURLs = lo.FilterMap(req.VideoURLs, func(u string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(u)
		return trimmed, trimmed != ""
	})
	if len(job.VideoURLs) == 0 {
		return nil, failf(KindInput, "", "no video clips provided")
	}
	return job, nil
}

// NewUploadJob builds a job for the multipart endpoint, where the audio
// file is already on its way into the workspace and clip URLs arrive as a
// comma-separated field.
func NewUploadJob(videoURLs, title, source string) (*model.Job, error) {
	urls := lo.FilterMap(strings.Split(videoURLs, ","), func(u string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(u)
		return trimmed, trimmed != ""
	})
	if len(urls) == 0 {
		return nil, failf(KindInput, "", "no video URLs provided")
	}
	return &model.Job{
		ID:        uuid.NewString()[:8],
		State:     model.StateCreated,
		AudioKind: model.AudioFromFile,
		VideoURLs: urls,
		Title:     title,
		Source:    source,
	}, nil
}
