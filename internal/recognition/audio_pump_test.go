package recognition

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicescribe/internal/domain"
)

func TestPumpAudioChunksForwardsUntilEOF(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{[]byte("ab"), []byte("cd")}}
	stream := newFakeStream()

	require.NoError(t, pumpAudioChunks(audio, stream, 0))
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("cd")}, stream.sentChunks())
}

func TestPumpAudioChunksReportsSendError(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	stream := newFakeStream()
	stream.sendErr = errors.New("send failed")

	err := pumpAudioChunks(audio, stream, 256)
	require.Error(t, err)
	assert.Equal(t, domain.RecognitionErrorNetwork, domain.RecognitionErrorCodeOf(err))
	assert.ErrorIs(t, err, stream.sendErr)
}

func TestPumpAudioChunksReportsReadError(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{readErr: errors.New("read failed")}

	err := pumpAudioChunks(audio, newFakeStream(), 256)
	require.Error(t, err)
	assert.Equal(t, domain.RecognitionErrorAudioCapture, domain.RecognitionErrorCodeOf(err))
}

func TestWaitForStreamTimeoutClosesSession(t *testing.T) {
	t.Parallel()

	stream := &blockingWaitStream{fakeStream: newFakeStream(), waitErr: errors.New("closed")}
	err := waitForStream(stream, 10*time.Millisecond)
	require.EqualError(t, err, "closed")
	assert.Equal(t, 1, stream.closeCount())
}

func TestWaitForStreamReturnsProviderResult(t *testing.T) {
	t.Parallel()

	stream := newFakeStream()
	require.NoError(t, stream.CloseSend())
	assert.NoError(t, waitForStream(stream, time.Second))
}

type blockingWaitStream struct {
	*fakeStream
	waitErr error

	mu         sync.Mutex
	closeCalls int
}

func (s *blockingWaitStream) Wait() error {
	<-s.done
	return s.waitErr
}

func (s *blockingWaitStream) Close() error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	return s.fakeStream.Close()
}

func (s *blockingWaitStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
