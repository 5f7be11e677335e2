package pipeline

import (
	"context"
	"fmt"
	"os"

	"clipsmith/internal/model"
	"clipsmith/internal/workspace"
)

// processClip runs one clip through fetch and normalization. A failed fetch
// marks the task skipped without attempting normalization; a failed
// normalization marks it skipped without re-fetching. The raw download is
// deleted as soon as normalization finishes, whatever the outcome, so peak
// disk usage stays near one raw plus one normalized clip rather than N.
func (o *Orchestrator) processClip(ctx context.Context, ws *workspace.Workspace, task *model.ClipTask, targetSeconds float64) {
	task.RawPath = ws.Path(fmt.Sprintf("clip_%d.mp4", task.Index))

	if err := o.fetcher.Fetch(ctx, task.URL, task.RawPath); err != nil {
		o.log.Warnf("[%s] clip %d: fetch failed, skipping: %v", ws.JobID, task.Index, err)
		task.Outcome = model.ClipSkipped
		task.Err = err
		return
	}

	task.NormalizedPath = ws.Path(fmt.Sprintf("norm_%d.mp4", task.Index))
	err := o.trans.Normalize(ctx, task.RawPath, task.NormalizedPath, targetSeconds)
	os.Remove(task.RawPath)
	task.RawPath = ""

	if err != nil {
		o.log.Warnf("[%s] clip %d: normalize failed, skipping: %v", ws.JobID, task.Index, err)
		os.Remove(task.NormalizedPath)
		task.NormalizedPath = ""
		task.Outcome = model.ClipSkipped
		task.Err = err
		return
	}

	o.log.Infof("[%s] clip %d: normalized to %.2fs", ws.JobID, task.Index, targetSeconds)
	task.Outcome = model.ClipOK
}
