package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"clipsmith/internal/model"
	"clipsmith/internal/pipeline"
)

const maxUploadBytes = 64 << 20 // multipart audio uploads

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	usage := s.wsm.DiskUsage()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"diskUsageBytes": usage,
		"diskUsageMb":    usage / (1024 * 1024),
		"ttsConfigured":  s.ttsReady,
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	removed := s.wsm.Sweep(true)
	s.log.Infof("cleanup: removed %d workspace(s) on demand", removed)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "cleaned",
		"diskUsageMb": s.wsm.DiskUsage() / (1024 * 1024),
	})
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	var req model.AssembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	job, err := pipeline.NewJob(req, s.ttsReady)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.log.Infof("[%s] new /assemble request (title=%q source=%q clips=%d)", job.ID, job.Title, job.Source, len(job.VideoURLs))
	s.runJob(w, r, job, nil)
}

func (s *Server) handleAssembleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	audioFile, header, err := r.FormFile("audio")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "no audio file provided", "")
		return
	}
	defer audioFile.Close()
	if header.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "empty audio filename", "")
		return
	}

	job, err := pipeline.NewUploadJob(r.FormValue("video_urls"), r.FormValue("title"), r.FormValue("source"))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	s.log.Infof("[%s] new /assemble-upload request (title=%q source=%q clips=%d)", job.ID, job.Title, job.Source, len(job.VideoURLs))

	// The uploaded audio is streamed into the workspace before the
	// pipeline starts, so the pipeline sees it like any other local file.
	s.runJob(w, r, job, func(dest string) error {
		out, err := os.Create(dest)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, audioFile)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		return err
	})
}

// runJob drives one job end to end: janitor pass, workspace acquisition,
// pipeline run, response, optional archival. The workspace is released on
// every exit path.
func (s *Server) runJob(w http.ResponseWriter, r *http.Request, job *model.Job, saveAudio func(dest string) error) {
	s.wsm.Sweep(false)

	ws, err := s.wsm.Acquire(job.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to create workspace", err.Error())
		return
	}
	defer s.wsm.Release(ws)

	if saveAudio != nil {
		job.AudioPath = ws.Path("audio.mp3")
		if err := saveAudio(job.AudioPath); err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to save audio upload", err.Error())
			return
		}
	}

	artifact, err := s.orch.Run(r.Context(), job, ws)
	if err != nil {
		s.log.Errorf("[%s] pipeline failed: %v", job.ID, err)
		s.writePipelineError(w, err)
		return
	}

	if err := s.serveArtifact(w, job.ID, artifact); err != nil {
		s.log.Errorf("[%s] failed to send artifact: %v", job.ID, err)
		return
	}

	if s.archiver.Enabled() {
		key, err := s.archiver.Store(r.Context(), job.ID, artifact)
		if err != nil {
			s.log.Warnf("[%s] archive upload failed: %v", job.ID, err)
		} else {
			job.ArtifactKey = key
		}
	}
}

func (s *Server) serveArtifact(w http.ResponseWriter, jobID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "final video not created", err.Error())
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "final video not readable", err.Error())
		return err
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="short_%s.mp4"`, jobID))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	_, err = io.Copy(w, f)
	return err
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		detail := perr.Detail
		if detail == "" && perr.Err != nil {
			detail = perr.Err.Error()
		}
		s.writeError(w, perr.HTTPStatus(), perr.Message, detail)
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error(), "")
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, detail string) {
	body := map[string]any{"error": msg}
	if detail != "" {
		body["detail"] = detail
	}
	s.writeJSON(w, status, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("server: encode response: %v", err)
	}
}
