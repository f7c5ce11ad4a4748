package terminal

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/termbridge/termbridge/internal/events"
	"github.com/termbridge/termbridge/internal/infrastructure/monitoring"
)

// Manager owns every live session: it spawns shells, relays input and
// resizes, and runs the per-session reader loop and exit watcher
// goroutines that feed the event sinks.
type Manager struct {
	spawner    Spawner
	sink       events.Sink
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	registry   *registry
	scrollback int
	wg         sync.WaitGroup
}

// NewManager creates a session manager pushing events into sink.
func NewManager(spawner Spawner, sink events.Sink, logger *zap.Logger) *Manager {
	if sink == nil {
		sink = events.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		spawner:    spawner,
		sink:       sink,
		logger:     logger.Named("terminal"),
		registry:   newRegistry(),
		scrollback: DefaultScrollbackBytes,
	}
}

// WithMetrics attaches a metrics collector.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithScrollback sets the per-session scrollback capacity in bytes.
func (m *Manager) WithScrollback(max int) *Manager {
	if max > 0 {
		m.scrollback = max
	}
	return m
}

// Spawn starts a shell on a fresh PTY and returns the new session id.
// Zero dimensions default to 24x80. On error, which is always a
// *SetupError naming the creation step that failed, nothing is
// registered and no goroutines run.
func (m *Manager) Spawn(rows, cols uint16, workingDir string) (string, error) {
	if rows == 0 {
		rows = DefaultRows
	}
	if cols == 0 {
		cols = DefaultCols
	}

	h, err := m.spawner.Spawn(rows, cols, workingDir)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordSpawnFailure()
		}
		m.logger.Error("session spawn failed",
			zap.Uint16("rows", rows),
			zap.Uint16("cols", cols),
			zap.String("working_dir", workingDir),
			zap.Error(err),
		)
		return "", err
	}

	s := &session{
		master:     h.Master,
		scrollback: newScrollback(m.scrollback),
		info: SessionInfo{
			Shell:      h.Shell,
			WorkingDir: h.WorkingDir,
			Rows:       rows,
			Cols:       cols,
			StartedAt:  time.Now(),
		},
	}
	id := m.registry.insert(s)

	if m.metrics != nil {
		m.metrics.RecordSpawn()
		m.metrics.SetSessionsActive(m.registry.count())
	}
	m.logger.Info("session spawned",
		zap.String("session_id", id),
		zap.String("shell", h.Shell),
		zap.String("working_dir", h.WorkingDir),
		zap.Uint16("rows", rows),
		zap.Uint16("cols", cols),
	)

	m.wg.Add(2)
	go m.readLoop(id, h.Master, s.scrollback)
	go m.watchExit(id, h.Proc)

	return id, nil
}

// Write delivers input bytes to the session's shell. The PTY write
// happens after the registry lock is released, so one blocked session
// cannot stall operations on the others.
func (m *Manager) Write(id string, data []byte) error {
	master, err := m.registry.handle(id)
	if err != nil {
		return err
	}

	n, err := master.Write(data)
	if m.metrics != nil && n > 0 {
		m.metrics.AddPTYWrite(n)
	}
	if err != nil {
		return &IOError{Op: "write", ID: id, Err: err}
	}
	return nil
}

// Resize applies a new window size to the session's PTY. The attached
// shell observes it as SIGWINCH.
func (m *Manager) Resize(id string, rows, cols uint16) error {
	master, err := m.registry.handle(id)
	if err != nil {
		return err
	}

	if err := master.Resize(rows, cols); err != nil {
		return &IOError{Op: "resize", ID: id, Err: err}
	}
	m.registry.setSize(id, rows, cols)
	if m.metrics != nil {
		m.metrics.RecordResize()
	}
	return nil
}

// Close requests cooperative shutdown of a session. It never fails:
// an unknown or already-closed id is a no-op, since the session being
// gone is exactly the state the caller asked for. Teardown itself runs
// on the session's reader loop once it observes the mark.
func (m *Manager) Close(id string) {
	if m.registry.markClosed(id) {
		m.logger.Info("session close requested", zap.String("session_id", id))
	}
}

// Count returns the number of registered sessions, draining ones
// included.
func (m *Manager) Count() int {
	return m.registry.count()
}

// List returns snapshots of all sessions in spawn order.
func (m *Manager) List() []SessionInfo {
	return m.registry.list()
}

// Get returns a snapshot of one session.
func (m *Manager) Get(id string) (SessionInfo, error) {
	info, ok := m.registry.get(id)
	if !ok {
		return SessionInfo{}, ErrSessionNotFound
	}
	return info, nil
}

// Scrollback returns the session's buffered recent output so a client
// attaching mid-session can repaint.
func (m *Manager) Scrollback(id string) (string, error) {
	sb, ok := m.registry.output(id)
	if !ok {
		return "", ErrSessionNotFound
	}
	return sb.Snapshot(), nil
}

// Shutdown hangs up every session and waits for their goroutines to
// finish. Closing the masters fails pending reads over to the end of
// stream path, so each reader runs its normal removal; the shells see
// SIGHUP and exit, which releases the watchers. The context bounds the
// wait for shells that ignore the hangup.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, master := range m.registry.closeAll() {
		master.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop pumps PTY output into the sinks until the stream ends, a
// read fails, or a close request is observed after a completed read.
// It is the sole owner of session removal: every path out of the loop
// deletes the registry entry and releases the master exactly once.
func (m *Manager) readLoop(id string, master Master, sb *scrollback) {
	defer m.wg.Done()

	buf := make([]byte, readBufferSize)
	cause := "eof"
	for {
		n, err := master.Read(buf)
		if n > 0 {
			sb.Write(buf[:n])
			m.emit(events.NewOutput(id, strings.ToValidUTF8(string(buf[:n]), "�")))
			if m.metrics != nil {
				m.metrics.AddPTYRead(n)
			}
		}
		if err != nil {
			// A master closed out from under us reads the same as the
			// stream ending: the session is going away either way.
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				m.emit(events.NewExit(id, 0))
			} else {
				cause = "read_error"
				m.emit(events.NewError(id, err))
				m.logger.Warn("pty read failed", zap.String("session_id", id), zap.Error(err))
			}
			break
		}
		if m.registry.closeRequested(id) {
			cause = "close"
			break
		}
	}

	m.registry.remove(id)
	if m.metrics != nil {
		m.metrics.RecordSessionExit(cause)
		m.metrics.SetSessionsActive(m.registry.count())
	}
	m.logger.Info("session removed", zap.String("session_id", id), zap.String("cause", cause))
}

// watchExit reaps the shell and publishes its real exit code. Together
// with the reader loop's end-of-stream event a termination can surface
// twice; consumers treat the pair as one. Wait failures are logged and
// produce no event.
func (m *Manager) watchExit(id string, proc Process) {
	defer m.wg.Done()

	code, err := proc.Wait()
	if err != nil {
		m.logger.Error("session wait failed", zap.String("session_id", id), zap.Error(err))
		return
	}

	m.emit(events.NewExit(id, code))
	m.logger.Info("session exited", zap.String("session_id", id), zap.Int("code", code))
}

func (m *Manager) emit(ev events.Event) {
	if m.metrics != nil {
		m.metrics.RecordEvent(string(ev.Type))
	}
	m.sink.Emit(ev)
}
