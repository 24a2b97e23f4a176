// MODUL: export/runner
// ZWECK: Fuehrt externe Werkzeuge als Subprozess aus und sammelt stdout/stderr zeilenweise
// INPUT: Kommando, Argumente
// OUTPUT: Output (stdout, stderr), Exit-Fehler
// NEBENEFFEKTE: Startet Subprozesse
// ABHAENGIGKEITEN: os/exec, golang.org/x/sync/errgroup
// HINWEISE: Kein Timeout, der Subprozess laeuft bis zum Ende oder bis ctx abgebrochen wird

package export

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// maxLineSize ist die laengste Zeile, die der Runner zeilenweise weitergibt.
const maxLineSize = 1024 * 1024

// Output enthaelt die gesammelte Ausgabe eines Subprozesses.
type Output struct {
	Stdout string
	Stderr string
}

// Tail gibt die letzten n Zeilen von stderr zurueck (fuer Fehlermeldungen).
func (o Output) Tail(n int) string {
	lines := strings.Split(strings.TrimRight(o.Stderr, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Runner startet externe Kommandos. Tests ersetzen ihn durch Fakes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner ist der Standard-Runner auf Basis von os/exec.
type ExecRunner struct {
	// Progress erhaelt jede Ausgabezeile, stderr mit Praefix "[ERR] "
	Progress func(line string)
}

// Run startet das Kommando und wartet auf sein Ende.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	slog.Debug("starting external tool", "cmd", name, "args", args)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Output{}, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return Output{}, err
	}
	if err := cmd.Start(); err != nil {
		return Output{}, err
	}

	var stdout, stderr strings.Builder
	var g errgroup.Group
	g.Go(func() error { return r.scan(stdoutPipe, &stdout, "") })
	g.Go(func() error { return r.scan(stderrPipe, &stderr, "[ERR] ") })

	scanErr := g.Wait()
	err = cmd.Wait()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return out, err
	}
	return out, scanErr
}

func (r ExecRunner) scan(pipe io.Reader, buf *strings.Builder, prefix string) error {
	s := bufio.NewScanner(pipe)
	s.Buffer(make([]byte, 64*1024), maxLineSize)
	s.Split(scanLines)
	for s.Scan() {
		line := s.Text()
		buf.WriteString(line + "\n")
		slog.Debug("external tool", "line", prefix+line)
		if r.Progress != nil {
			r.Progress(prefix + line)
		}
	}

	// Rest verwerfen, sonst blockiert der Subprozess auf der vollen Pipe
	if _, err := io.Copy(io.Discard, pipe); err != nil {
		slog.Debug("external tool", "drain", err)
	}
	return s.Err()
}

// scanLines trennt an \n und \r (Fortschrittsbalken ueberschreiben ihre Zeile mit \r).
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 == len(data) && !atEOF {
				return 0, nil, nil
			}
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
