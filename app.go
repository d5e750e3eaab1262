package main

import (
	"context"
	"errors"
	"log/slog"
	goruntime "runtime"
	"sync"

	"github.com/bep/debounce"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"voicescribe/internal/bootstrap"
	"voicescribe/internal/config"
	"voicescribe/internal/domain"
	"voicescribe/internal/usecase"
)

const (
	eventSession = "voicescribe:session"
	eventInterim = "voicescribe:interim"
	eventCue     = "voicescribe:cue"
	eventError   = "voicescribe:error"
)

var errNotInitialized = errors.New("application is not initialized")

// App is the Wails application root. It is also the session's event sink.
type App struct {
	ctx context.Context

	session *usecase.TranscriptionSession
	cfg     config.Config
	log     *slog.Logger
	bootErr error

	emit func(ctx context.Context, name string, data ...interface{})

	mu        sync.Mutex
	interim   string
	debounced func(func())
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.emitError("Startup failed", err.Error())
		return
	}

	a.cfg = services.Config
	a.log = services.Logger.With(slog.String("component", "app"))
	a.mu.Lock()
	a.debounced = debounce.New(a.cfg.Session.InterimDebounce)
	a.mu.Unlock()
	a.session = services.Session

	a.SessionChanged(a.session.Snapshot())
}

func (a *App) shutdown(_ context.Context) {
	if a.session == nil {
		return
	}
	if err := a.session.Close(); err != nil && a.log != nil {
		a.log.Warn("session close failed", slog.String("error", err.Error()))
	}
}

// Toggle starts or stops listening.
func (a *App) Toggle() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}, err
	}
	a.session.Toggle(a.ctx)
	return a.session.Snapshot(), nil
}

// StartRecording starts listening, clearing a previous recognition error.
func (a *App) StartRecording() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}, err
	}
	a.session.StartRecording(a.ctx)
	return a.session.Snapshot(), nil
}

func (a *App) StopRecording() (domain.Snapshot, error) {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}, err
	}
	a.session.StopRecording()
	return a.session.Snapshot(), nil
}

// SetTranscript stores a manual edit of the transcript text area.
func (a *App) SetTranscript(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.session.SetTranscript(text)
	return nil
}

func (a *App) Clear() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.session.Clear()
	return nil
}

// GetSnapshot returns the current session state.
func (a *App) GetSnapshot() domain.Snapshot {
	if a.session == nil {
		if a.bootErr != nil {
			return domain.Snapshot{State: domain.RecordingStateError, ErrorMessage: a.bootErr.Error()}
		}
		return domain.Snapshot{State: domain.RecordingStateIdle}
	}
	return a.session.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Recognition.Language,
		"rulesFile":        a.cfg.Rules.Path,
		"configFile":       a.cfg.File,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.session == nil {
		return errNotInitialized
	}
	return nil
}

// SessionChanged emits the full snapshot to the frontend.
func (a *App) SessionChanged(snapshot domain.Snapshot) {
	a.mu.Lock()
	a.interim = snapshot.InterimText
	a.mu.Unlock()

	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventSession, snapshot)
}

// InterimChanged emits interim text, coalescing bursts of provider updates.
func (a *App) InterimChanged(text string) {
	a.mu.Lock()
	a.interim = text
	debounced := a.debounced
	a.mu.Unlock()

	if debounced == nil {
		a.flushInterim()
		return
	}
	debounced(a.flushInterim)
}

// Cue asks the frontend to play the begin or end tone.
func (a *App) Cue(cue domain.Cue) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventCue, map[string]string{"cue": string(cue)})
}

func (a *App) flushInterim() {
	a.mu.Lock()
	text := a.interim
	a.mu.Unlock()

	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventInterim, map[string]string{"text": text})
}

func (a *App) emitError(message string, detail string) {
	if a.ctx == nil {
		return
	}
	a.emit(a.ctx, eventError, map[string]string{
		"message": message,
		"detail":  detail,
	})
}

func (a *App) menu() *menu.Menu {
	appMenu := menu.NewMenu()
	if goruntime.GOOS == "darwin" {
		appMenu.Append(menu.AppMenu())
		appMenu.Append(menu.EditMenu())
	}

	dictation := appMenu.AddSubmenu("Dictation")
	dictation.AddText("Toggle microphone", keys.CmdOrCtrl("y"), func(_ *menu.CallbackData) {
		_, _ = a.Toggle()
	})
	dictation.AddText("Clear transcript", nil, func(_ *menu.CallbackData) {
		_ = a.Clear()
	})
	return appMenu
}
