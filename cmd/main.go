package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"clipsmith/internal"
	"clipsmith/internal/archive"
	"clipsmith/internal/fetch"
	"clipsmith/internal/logging"
	"clipsmith/internal/pipeline"
	"clipsmith/internal/server"
	"clipsmith/internal/transcode"
	"clipsmith/internal/tts"
	"clipsmith/internal/workspace"
)

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	log, err := logging.New("errors.log")
	if err != nil {
		panic(err)
	}
	defer log.Close()

	cfg, err := internal.LoadConfig()
	if err != nil {
		log.Errorf("config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	wsm, err := workspace.NewManager(cfg.WorkDir, cfg.WorkspaceTTL, log)
	if err != nil {
		log.Errorf("workspace: %v", err)
		return
	}

	speech := tts.New(cfg.TTSAPIKey, cfg.TTSVoiceID, cfg.MaxScriptChars, cfg.MinAudioBytes,
		cfg.TTSAttempts, cfg.RetryBaseDelay, cfg.FetchTimeout, log)
	if !speech.Configured() {
		log.Warnf("tts: no API key, script-to-speech branch disabled")
	}

	fetcher := fetch.New(cfg.FetchTimeout, cfg.FetchAttempts, cfg.RetryBaseDelay, log)
	trans := transcode.NewFFmpeg(cfg.OutputWidth, cfg.OutputHeight, cfg.FrameRate,
		cfg.ProbeTimeout, cfg.EncodeTimeout, log)
	orch := pipeline.NewOrchestrator(cfg, trans, fetcher, speech, log)

	archiver, err := archive.New(cfg, log)
	if err != nil {
		log.Errorf("archive: %v", err)
		return
	}
	if archiver.Enabled() {
		log.Infof("archive: enabled (bucket=%s prefix=%s)", cfg.S3Bucket, cfg.S3Prefix)
	}

	// Background TTL sweep for workspaces orphaned by a crash or restart.
	if cfg.JanitorSchedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(cfg.JanitorSchedule, func() { wsm.Sweep(false) }); err != nil {
			log.Errorf("janitor schedule %q: %v", cfg.JanitorSchedule, err)
			return
		}
		c.Start()
		defer c.Stop()
	}

	srv := server.New(cfg, wsm, orch, archiver, speech.Configured(), log)
	if err := srv.Run(ctx); err != nil {
		log.Errorf("server: %v", err)
	}
}
