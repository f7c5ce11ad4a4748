package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// ShellOptions fixes what every spawned session runs and the terminal
// environment handed to it. Empty fields resolve at spawn time: Path
// falls back to $SHELL then /bin/zsh, Locale to $LANG then en_US.UTF-8,
// and Term/ColorTerm to xterm-256color/truecolor.
type ShellOptions struct {
	Path      string
	Login     bool // pass -l so the shell runs its login profile
	Term      string
	ColorTerm string
	Locale    string
}

func (o ShellOptions) shell() string {
	if o.Path != "" {
		return o.Path
	}
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/zsh"
}

func (o ShellOptions) locale() string {
	if o.Locale != "" {
		return o.Locale
	}
	if l := os.Getenv("LANG"); l != "" {
		return l
	}
	return "en_US.UTF-8"
}

func (o ShellOptions) term() string {
	if o.Term != "" {
		return o.Term
	}
	return "xterm-256color"
}

func (o ShellOptions) colorTerm() string {
	if o.ColorTerm != "" {
		return o.ColorTerm
	}
	return "truecolor"
}

// Spawner allocates a PTY and a shell child attached to it. The
// production implementation is PTYSpawner; tests substitute fakes.
type Spawner interface {
	Spawn(rows, cols uint16, workingDir string) (Handles, error)
}

// PTYSpawner creates real PTY-backed shell sessions via creack/pty.
type PTYSpawner struct {
	opts ShellOptions
}

// NewPTYSpawner creates a spawner with the given shell options.
func NewPTYSpawner(opts ShellOptions) *PTYSpawner {
	return &PTYSpawner{opts: opts}
}

// Spawn opens a PTY pair, sizes it, and starts the shell attached to
// the slave side. Each step fails with its own *SetupError and cleans
// up the descriptors already allocated.
func (s *PTYSpawner) Spawn(rows, cols uint16, workingDir string) (Handles, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return Handles{}, &SetupError{Step: StepOpenPTY, Err: err}
	}

	if err := pty.Setsize(ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		ptmx.Close()
		tty.Close()
		return Handles{}, &SetupError{Step: StepSizePTY, Err: err}
	}

	cmd, shell, dir := s.buildCommand(workingDir, tty)
	if err := cmd.Start(); err != nil {
		ptmx.Close()
		tty.Close()
		return Handles{}, &SetupError{Step: StepStartShell, Err: err}
	}

	// The child holds its own slave descriptor now.
	tty.Close()

	return Handles{
		Master:     &ptyMaster{file: ptmx},
		Proc:       &shellProcess{cmd: cmd},
		Shell:      shell,
		WorkingDir: dir,
	}, nil
}

// buildCommand assembles the shell invocation: arguments, working
// directory, terminal environment, and the slave wired to stdio.
func (s *PTYSpawner) buildCommand(workingDir string, tty *os.File) (*exec.Cmd, string, string) {
	shell := s.opts.shell()

	var args []string
	if s.opts.Login {
		args = append(args, "-l")
	}

	cmd := exec.Command(shell, args...)
	cmd.Dir = resolveWorkingDir(workingDir)
	cmd.Env = append(os.Environ(),
		"TERM="+s.opts.term(),
		"COLORTERM="+s.opts.colorTerm(),
		"LANG="+s.opts.locale(),
	)
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	configureSession(cmd)

	return cmd, shell, cmd.Dir
}

// resolveWorkingDir falls back to the user's home directory, then /tmp.
func resolveWorkingDir(dir string) string {
	if dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	return "/tmp"
}

// ptyMaster adapts the master descriptor to the Master interface. A
// Linux master read returns EIO once the child side hangs up; that is
// this PTY's end of stream, so it is reported as io.EOF and the reader
// loop handles hangup and close alike.
type ptyMaster struct {
	file *os.File
}

func (m *ptyMaster) Read(p []byte) (int, error) {
	n, err := m.file.Read(p)
	if err != nil && errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

func (m *ptyMaster) Write(p []byte) (int, error) { return m.file.Write(p) }

func (m *ptyMaster) Close() error { return m.file.Close() }

func (m *ptyMaster) Resize(rows, cols uint16) error {
	return pty.Setsize(m.file, &pty.Winsize{Rows: rows, Cols: cols})
}

// shellProcess adapts exec.Cmd to the Process interface.
type shellProcess struct {
	cmd *exec.Cmd
}

// Wait reaps the shell. A shell that exited nonzero is a normal
// termination and reports (code, nil); a shell killed by a signal
// reports -1. The error is reserved for wait itself failing.
func (p *shellProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return p.cmd.ProcessState.ExitCode(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
