package terminal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/termbridge/termbridge/internal/events"
)

type readResult struct {
	data []byte
	err  error
}

// fakeMaster scripts a PTY master: tests feed chunks and errors
// through a channel while writes and resizes are recorded.
type fakeMaster struct {
	stream chan readResult
	done   chan struct{}

	mu        sync.Mutex
	written   bytes.Buffer
	rows      uint16
	cols      uint16
	writeErr  error
	resizeErr error
	closed    bool
}

func newFakeMaster() *fakeMaster {
	return &fakeMaster{
		stream: make(chan readResult, 16),
		done:   make(chan struct{}),
	}
}

func (f *fakeMaster) Read(p []byte) (int, error) {
	select {
	case r, ok := <-f.stream:
		if !ok {
			return 0, io.EOF
		}
		return copy(p, r.data), r.err
	case <-f.done:
		return 0, os.ErrClosed
	}
}

func (f *fakeMaster) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written.Write(p)
}

func (f *fakeMaster) Resize(rows, cols uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resizeErr != nil {
		return f.resizeErr
	}
	f.rows, f.cols = rows, cols
	return nil
}

func (f *fakeMaster) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeMaster) send(data string)     { f.stream <- readResult{data: []byte(data)} }
func (f *fakeMaster) sendErr(err error)    { f.stream <- readResult{err: err} }
func (f *fakeMaster) endStream()           { close(f.stream) }
func (f *fakeMaster) setWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}
func (f *fakeMaster) setResizeErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizeErr = err
}

func (f *fakeMaster) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeMaster) wrote() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

func (f *fakeMaster) size() (uint16, uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows, f.cols
}

type waitResult struct {
	code int
	err  error
}

// fakeProcess blocks Wait until the test releases an exit.
type fakeProcess struct {
	result chan waitResult
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{result: make(chan waitResult, 1)}
}

func (p *fakeProcess) Wait() (int, error) {
	r := <-p.result
	return r.code, r.err
}

func (p *fakeProcess) exit(code int) {
	select {
	case p.result <- waitResult{code: code}:
	default:
	}
}

func (p *fakeProcess) fail(err error) {
	select {
	case p.result <- waitResult{err: err}:
	default:
	}
}

type spawnRecord struct {
	master *fakeMaster
	proc   *fakeProcess
	rows   uint16
	cols   uint16
	dir    string
}

func (r *spawnRecord) endStream() { r.master.endStream() }

// fakeSpawner hands out scripted master/process pairs, or a fixed
// error when one is set.
type fakeSpawner struct {
	mu      sync.Mutex
	err     error
	records []*spawnRecord
}

func (s *fakeSpawner) Spawn(rows, cols uint16, workingDir string) (Handles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Handles{}, s.err
	}
	rec := &spawnRecord{
		master: newFakeMaster(),
		proc:   newFakeProcess(),
		rows:   rows,
		cols:   cols,
		dir:    workingDir,
	}
	s.records = append(s.records, rec)
	return Handles{
		Master:     rec.master,
		Proc:       rec.proc,
		Shell:      "/bin/fake",
		WorkingDir: workingDir,
	}, nil
}

func (s *fakeSpawner) last() *spawnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[len(s.records)-1]
}

func (s *fakeSpawner) all() []*spawnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*spawnRecord(nil), s.records...)
}

func (s *fakeSpawner) failWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// recordingSink captures emitted events and hands them out in order.
type recordingSink struct {
	mu      sync.Mutex
	events  []events.Event
	arrived chan events.Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{arrived: make(chan events.Event, 64)}
}

func (s *recordingSink) Emit(ev events.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.arrived <- ev
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

func (s *recordingSink) next(t *testing.T) events.Event {
	t.Helper()
	select {
	case ev := <-s.arrived:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeSpawner, *recordingSink) {
	t.Helper()
	spawner := &fakeSpawner{}
	sink := newRecordingSink()
	mgr := NewManager(spawner, sink, zap.NewNop())

	t.Cleanup(func() {
		for _, rec := range spawner.all() {
			rec.proc.exit(0)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		mgr.Shutdown(ctx)
	})
	return mgr, spawner, sink
}

func waitRemoved(t *testing.T, mgr *Manager) {
	t.Helper()
	require.Eventually(t, func() bool { return mgr.Count() == 0 },
		2*time.Second, 5*time.Millisecond)
}

func TestSpawnAssignsSequentialIDs(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	for i, want := range []string{"terminal-1", "terminal-2", "terminal-3"} {
		id, err := mgr.Spawn(24, 80, "")
		require.NoError(t, err, "spawn %d", i+1)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, 3, mgr.Count())
}

func TestSpawnNeverReusesIDs(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)

	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)
	require.Equal(t, "terminal-1", id)

	spawner.last().endStream()
	sink.next(t) // exit event for the drained stream
	waitRemoved(t, mgr)

	id, err = mgr.Spawn(24, 80, "")
	require.NoError(t, err)
	assert.Equal(t, "terminal-2", id)
}

func TestSpawnDefaultsDimensions(t *testing.T) {
	mgr, spawner, _ := newTestManager(t)

	_, err := mgr.Spawn(0, 0, "")
	require.NoError(t, err)

	rec := spawner.last()
	assert.Equal(t, DefaultRows, rec.rows)
	assert.Equal(t, DefaultCols, rec.cols)
}

func TestSpawnFailureRegistersNothing(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	spawner.failWith(&SetupError{Step: StepOpenPTY, Err: errors.New("out of ptys")})

	id, err := mgr.Spawn(24, 80, "")
	assert.Empty(t, id)

	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, StepOpenPTY, setupErr.Step)

	assert.Equal(t, 0, mgr.Count())
	assert.Empty(t, sink.all())
}

func TestOutputEventsCarryDecodedChunks(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	spawner.last().master.send("hello ")
	spawner.last().master.send("world")

	first := sink.next(t)
	assert.Equal(t, events.TypeOutput, first.Type)
	assert.Equal(t, id, first.SessionID)
	assert.Equal(t, "hello ", first.Data)

	second := sink.next(t)
	assert.Equal(t, "world", second.Data)
}

func TestOutputReplacesInvalidUTF8(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	_, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	spawner.last().master.stream <- readResult{data: []byte{0xFF, 'h', 'i'}}

	ev := sink.next(t)
	assert.Equal(t, "�hi", ev.Data)
}

func TestEndOfStreamEmitsExitZeroAndRemoves(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)
	rec := spawner.last()

	rec.endStream()

	ev := sink.next(t)
	assert.Equal(t, events.TypeExit, ev.Type)
	code, ok := ev.ExitCode()
	require.True(t, ok)
	assert.Equal(t, 0, code)

	waitRemoved(t, mgr)
	assert.True(t, rec.master.isClosed())

	// The watcher still reports the shell's real exit code.
	rec.proc.exit(7)
	final := sink.next(t)
	assert.Equal(t, events.TypeExit, final.Type)
	code, ok = final.ExitCode()
	require.True(t, ok)
	assert.Equal(t, 7, code)
	assert.Equal(t, id, final.SessionID)
}

func TestDataArrivingWithEOFIsEmittedFirst(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	_, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	spawner.last().master.stream <- readResult{data: []byte("last words"), err: io.EOF}

	first := sink.next(t)
	assert.Equal(t, events.TypeOutput, first.Type)
	assert.Equal(t, "last words", first.Data)

	second := sink.next(t)
	assert.Equal(t, events.TypeExit, second.Type)
}

func TestReadFailureEmitsErrorAndRemoves(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	_, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	spawner.last().master.sendErr(errors.New("input/output error"))

	ev := sink.next(t)
	assert.Equal(t, events.TypeError, ev.Type)
	assert.Contains(t, ev.Error, "input/output error")

	waitRemoved(t, mgr)
	assert.True(t, spawner.last().master.isClosed())
}

func TestWriteDeliversToMaster(t *testing.T) {
	mgr, spawner, _ := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	require.NoError(t, mgr.Write(id, []byte("ls -la\n")))
	assert.Equal(t, "ls -la\n", spawner.last().master.wrote())
}

func TestWriteUnknownSession(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	err := mgr.Write("terminal-99", []byte("x"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWriteAfterCloseRequest(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	mgr.Close(id)

	err = mgr.Write(id, []byte("x"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	err = mgr.Resize(id, 30, 90)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestWriteFailureWrapsIOError(t *testing.T) {
	mgr, spawner, _ := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	spawner.last().master.setWriteErr(errors.New("broken pipe"))

	err = mgr.Write(id, []byte("x"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, id, ioErr.ID)
}

func TestResizeAppliesAndRecords(t *testing.T) {
	mgr, spawner, _ := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	require.NoError(t, mgr.Resize(id, 50, 132))

	rows, cols := spawner.last().master.size()
	assert.Equal(t, uint16(50), rows)
	assert.Equal(t, uint16(132), cols)

	info, err := mgr.Get(id)
	require.NoError(t, err)
	assert.Equal(t, uint16(50), info.Rows)
	assert.Equal(t, uint16(132), info.Cols)
}

func TestResizeErrors(t *testing.T) {
	mgr, spawner, _ := newTestManager(t)

	err := mgr.Resize("terminal-99", 30, 90)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)
	spawner.last().master.setResizeErr(errors.New("bad ioctl"))

	err = mgr.Resize(id, 30, 90)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "resize", ioErr.Op)
}

func TestCloseUnknownSessionIsNoOp(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	assert.NotPanics(t, func() {
		mgr.Close("terminal-404")
		mgr.Close("terminal-404")
	})
	assert.Equal(t, 0, mgr.Count())
}

func TestCloseIsCooperative(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)
	rec := spawner.last()

	mgr.Close(id)
	mgr.Close(id) // idempotent

	// The reader is parked in a read; the session stays registered
	// until that read completes.
	assert.Equal(t, 1, mgr.Count())

	rec.master.send("final output")

	ev := sink.next(t)
	assert.Equal(t, events.TypeOutput, ev.Type)
	assert.Equal(t, "final output", ev.Data)

	waitRemoved(t, mgr)
	assert.True(t, rec.master.isClosed())

	// The close path itself publishes no exit event; that arrives from
	// the watcher once the hung-up shell dies.
	for _, ev := range sink.all() {
		assert.NotEqual(t, events.TypeExit, ev.Type)
	}

	rec.proc.exit(129)
	final := sink.next(t)
	code, ok := final.ExitCode()
	require.True(t, ok)
	assert.Equal(t, 129, code)
}

func TestWaitFailureLogsWithoutEvent(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	_, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	spawner.last().proc.fail(errors.New("waitpid: no child"))
	time.Sleep(50 * time.Millisecond)

	for _, ev := range sink.all() {
		assert.NotEqual(t, events.TypeExit, ev.Type)
	}
	// The reader side is unaffected.
	assert.Equal(t, 1, mgr.Count())
}

func TestConcurrentSpawnsGetUniqueIDs(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	const n = 10
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := mgr.Spawn(24, 80, "")
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %s issued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, mgr.Count())
}

func TestListAndGet(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	first, err := mgr.Spawn(24, 80, "/srv/a")
	require.NoError(t, err)
	second, err := mgr.Spawn(30, 100, "/srv/b")
	require.NoError(t, err)

	list := mgr.List()
	require.Len(t, list, 2)
	assert.Equal(t, first, list[0].ID)
	assert.Equal(t, second, list[1].ID)
	assert.Equal(t, "/bin/fake", list[0].Shell)
	assert.Equal(t, uint16(30), list[1].Rows)

	info, err := mgr.Get(second)
	require.NoError(t, err)
	assert.Equal(t, "/srv/b", info.WorkingDir)
	assert.False(t, info.Closed)

	_, err = mgr.Get("terminal-9")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestScrollbackAccumulates(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	id, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	spawner.last().master.send("hello ")
	spawner.last().master.send("world")
	sink.next(t)
	sink.next(t)

	out, err := mgr.Scrollback(id)
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, err = mgr.Scrollback("terminal-9")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestShutdownDrainsSessions(t *testing.T) {
	mgr, spawner, sink := newTestManager(t)
	_, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)
	_, err = mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	// Shells exit once their masters hang up.
	for _, rec := range spawner.all() {
		rec.proc.exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, mgr.Shutdown(ctx))

	assert.Equal(t, 0, mgr.Count())
	for _, rec := range spawner.all() {
		assert.True(t, rec.master.isClosed())
	}
	assert.NotEmpty(t, sink.all())
}

func TestShutdownHonorsContext(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	_, err := mgr.Spawn(24, 80, "")
	require.NoError(t, err)

	// The watcher stays blocked: the fake shell ignores the hangup.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, mgr.Shutdown(ctx), context.DeadlineExceeded)
}

func TestRealShellRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PTY integration test in short mode")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	sink := newRecordingSink()
	mgr := NewManager(NewPTYSpawner(ShellOptions{Path: "/bin/sh"}), sink, zap.NewNop())

	id, err := mgr.Spawn(24, 80, t.TempDir())
	require.NoError(t, err)

	require.NoError(t, mgr.Write(id, []byte("echo bridge-$((40+2))\n")))
	waitForOutput(t, sink, "bridge-42")

	require.NoError(t, mgr.Write(id, []byte("exit 3\n")))
	waitForExitCode(t, sink, 3)
	waitRemoved(t, mgr)
}

// waitForOutput accumulates output events until the substring shows up.
func waitForOutput(t *testing.T, sink *recordingSink, substr string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	var acc strings.Builder
	for {
		select {
		case ev := <-sink.arrived:
			if ev.Type == events.TypeOutput {
				acc.WriteString(ev.Data)
				if strings.Contains(acc.String(), substr) {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for output %q, saw %q", substr, acc.String())
		}
	}
}

// waitForExitCode drains events until an exit with the given code
// arrives. The stream-end exit (code 0) may come first.
func waitForExitCode(t *testing.T, sink *recordingSink, want int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sink.arrived:
			if code, ok := ev.ExitCode(); ok && code == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for exit code %d", want)
		}
	}
}
