package transcript

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/termbridge/termbridge/internal/events"
)

// Recorder persists each session's decoded output to a gzip-compressed
// transcript at <dir>/<session-id>.log.gz. It is a pure event consumer:
// the first output event for a session opens its file, and the first
// exit or error event closes it. The duplicate exit a session can
// produce is harmless here, the second close finds nothing open.
type Recorder struct {
	dir    string
	logger *zap.Logger

	mu   sync.Mutex
	open map[string]*transcript
}

type transcript struct {
	file *os.File
	gz   *gzip.Writer
}

// New creates a recorder writing transcripts under dir, creating it if
// needed.
func New(dir string, logger *zap.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{
		dir:    dir,
		logger: logger.Named("transcript"),
		open:   make(map[string]*transcript),
	}, nil
}

// Emit consumes one session event. Disk errors are logged and disable
// recording for that session; they never propagate to the emitter.
func (r *Recorder) Emit(ev events.Event) {
	switch ev.Type {
	case events.TypeOutput:
		r.write(ev.SessionID, ev.Data)
	case events.TypeExit, events.TypeError:
		r.finish(ev.SessionID)
	}
}

// Close flushes and closes every open transcript.
func (r *Recorder) Close() {
	r.mu.Lock()
	open := r.open
	r.open = make(map[string]*transcript)
	r.mu.Unlock()

	for id, t := range open {
		r.closeTranscript(id, t)
	}
}

func (r *Recorder) write(id, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.open[id]
	if !ok {
		path := filepath.Join(r.dir, id+".log.gz")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			r.logger.Error("transcript open failed",
				zap.String("session_id", id),
				zap.String("path", path),
				zap.Error(err),
			)
			return
		}
		t = &transcript{file: file, gz: gzip.NewWriter(file)}
		r.open[id] = t
		r.logger.Info("transcript started",
			zap.String("session_id", id),
			zap.String("path", path),
		)
	}

	if _, err := t.gz.Write([]byte(data)); err != nil {
		r.logger.Error("transcript write failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
		delete(r.open, id)
		r.closeTranscript(id, t)
	}
}

func (r *Recorder) finish(id string) {
	r.mu.Lock()
	t, ok := r.open[id]
	delete(r.open, id)
	r.mu.Unlock()

	if ok {
		r.closeTranscript(id, t)
	}
}

func (r *Recorder) closeTranscript(id string, t *transcript) {
	if err := t.gz.Close(); err != nil {
		r.logger.Error("transcript flush failed", zap.String("session_id", id), zap.Error(err))
	}
	if err := t.file.Close(); err != nil {
		r.logger.Error("transcript close failed", zap.String("session_id", id), zap.Error(err))
	}
}
