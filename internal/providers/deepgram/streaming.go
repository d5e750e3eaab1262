package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"voicescribe/internal/domain"
	"voicescribe/internal/ports"
)

var ErrMissingAPIKey = errors.New("DEEPGRAM_API_KEY is not configured")

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

// Provider implements ports.TranscriptionProvider for Deepgram.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, domain.NewRecognitionError(domain.RecognitionErrorNotAllowed, ErrMissingAPIKey)
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, dialError(resp, err)
	}

	session := &streamingSession{
		conn:     conn,
		results:  make(chan domain.RecognitionResult, 64),
		audio:    make(chan []byte, 32),
		closing:  make(chan struct{}),
		readDone: make(chan struct{}),
		done:     make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.results)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type streamingSession struct {
	conn *websocket.Conn

	results  chan domain.RecognitionResult
	audio    chan []byte
	closing  chan struct{}
	readDone chan struct{}
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errors.New("audio stream is already closed")
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.closing:
		return errors.New("session closed")
	case <-s.readDone:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Results() <-chan domain.RecognitionResult {
	return s.results
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}
	if errors.Is(err, net.ErrClosed) {
		return
	}
	var recErr *domain.RecognitionError
	if !errors.As(err, &recErr) {
		err = domain.NewRecognitionError(domain.RecognitionErrorNetwork, err)
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for {
		var chunk []byte
		var ok bool
		select {
		case chunk, ok = <-s.audio:
		case <-s.readDone:
			return
		}
		if !ok {
			break
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			return
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()
	defer close(s.readDone)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = strings.TrimSpace(response.Description)
			}
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(domain.NewRecognitionError(domain.RecognitionErrorOther, errors.New(message)))
			return
		}

		result, ok := toResult(response)
		if !ok {
			continue
		}
		s.emit(result)
	}
}

// emit blocks so final segments are never dropped while the session is open.
func (s *streamingSession) emit(result domain.RecognitionResult) {
	select {
	case s.results <- result:
	case <-s.closing:
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func toResult(response deepgramResponse) (domain.RecognitionResult, bool) {
	if response.Type != "" && !strings.EqualFold(response.Type, "Results") {
		return domain.RecognitionResult{}, false
	}
	final := response.IsFinal || response.SpeechFinal
	transcript := extractTranscript(response)
	if transcript == "" && !final {
		return domain.RecognitionResult{}, false
	}
	return domain.RecognitionResult{Text: transcript, Final: final}, true
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func dialError(resp *http.Response, err error) error {
	wrapped := fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return domain.NewRecognitionError(domain.RecognitionErrorNotAllowed, fmt.Errorf("%w (HTTP %d)", wrapped, resp.StatusCode))
	}
	return domain.NewRecognitionError(domain.RecognitionErrorNetwork, wrapped)
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := providerCfg.APIBaseURL
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	base = strings.TrimSpace(base)

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	language := streamCfg.Language
	if language == "" {
		language = providerCfg.Language
	}
	if language != "" {
		query.Set("language", language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
