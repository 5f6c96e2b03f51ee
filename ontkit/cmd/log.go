package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

const logPrefix = "[ontkit] "

// runLog mirrors progress messages into the per-run log file once
// openRunLog has been called. Nil means stderr only.
var runLog *log.Logger

var warnColor = color.New(color.FgYellow)

// openRunLog truncates path and starts mirroring logf output into it. The
// returned function closes the file and stops mirroring.
func openRunLog(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	runLog = log.New(f, "", log.Ldate|log.Ltime)
	return func() {
		runLog = nil
		_ = f.Close()
	}, nil
}

func logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, logPrefix+msg)
	if runLog != nil {
		runLog.Print(msg)
	}
}

func warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_, _ = warnColor.Fprintln(os.Stderr, logPrefix+"Warning: "+msg)
	if runLog != nil {
		runLog.Print("Warning: " + msg)
	}
}

// logHeader records the tool version and the full command line.
func logHeader(args []string) {
	logf("Running ontkit %s", version)
	logf("command line: %s", strings.Join(append([]string{"ontkit"}, args...), " "))
}
