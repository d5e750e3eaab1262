package bootstrap

import (
	"errors"
	"log/slog"
	"os"

	"voicescribe/internal/audio"
	"voicescribe/internal/config"
	"voicescribe/internal/logging"
	"voicescribe/internal/ports"
	"voicescribe/internal/providers/deepgram"
	"voicescribe/internal/recognition"
	"voicescribe/internal/rules"
	"voicescribe/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Session    *usecase.TranscriptionSession
	Recognizer *recognition.Recognizer
	Config     config.Config
	Logger     *slog.Logger
}

// Build wires all backend dependencies for the current runtime. A missing API
// key or recorder leaves the session running in unsupported mode.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if cfg.File != "" {
		logger.Info("loaded config file", slog.String("path", cfg.File))
	}

	rulesEngine, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit, cfg.Rules.Inline)
	if err != nil {
		return Services{}, err
	}
	logger.Info("substitution rules loaded", slog.String("path", cfg.Rules.Path), slog.Int("count", rulesEngine.Len()))

	capture, err := audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand)
	if err != nil {
		return Services{}, err
	}

	recognizer := recognition.NewRecognizer(
		capture,
		deepgram.NewProvider(deepgram.Config{
			APIKey:      cfg.Deepgram.APIKey,
			APIBaseURL:  cfg.Deepgram.APIBaseURL,
			Model:       cfg.Deepgram.Model,
			Language:    cfg.Deepgram.Language,
			SmartFormat: cfg.Deepgram.SmartFormat,
		}),
		recognition.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   cfg.Audio.Channels,
				Encoding:   "linear16",
			},
			ChunkSize:       cfg.Session.ChunkSize,
			FinalizeTimeout: cfg.Session.FinalizeTimeout,
			Probe: func() error {
				if cfg.Deepgram.APIKey == "" {
					return errors.New("DEEPGRAM_API_KEY is not set")
				}
				return capture.Available()
			},
			Logger: logger,
		},
	)

	session := usecase.NewTranscriptionSession(recognizer, rulesEngine, eventSink, usecase.Config{
		Recognition: ports.RecognitionOptions{
			Continuous:     cfg.Recognition.Continuous,
			InterimResults: cfg.Recognition.InterimResults,
			Language:       cfg.Recognition.Language,
		},
		Logger: logger,
	})

	return Services{Session: session, Recognizer: recognizer, Config: cfg, Logger: logger}, nil
}
