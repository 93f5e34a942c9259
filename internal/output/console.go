package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ConsoleOutput writes human-readable status lines for interactive use
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	errWriter     io.Writer
	showTimestamp bool
}

// ConsoleConfig configures console output behavior
type ConsoleConfig struct {
	// ShowTimestamp prefixes each line with a timestamp
	ShowTimestamp bool

	// Writer is the output destination (default: os.Stdout)
	Writer io.Writer

	// ErrWriter receives error messages (default: os.Stderr)
	ErrWriter io.Writer
}

// NewConsoleOutput creates a new console output handler
func NewConsoleOutput(config ConsoleConfig) *ConsoleOutput {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	errWriter := config.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}

	return &ConsoleOutput{
		writer:        writer,
		errWriter:     errWriter,
		showTimestamp: config.ShowTimestamp,
	}
}

// DefaultConsoleOutput creates a console output with default settings
func DefaultConsoleOutput() *ConsoleOutput {
	return NewConsoleOutput(ConsoleConfig{
		ShowTimestamp: true,
		Writer:        os.Stdout,
	})
}

// Write writes one line of text
func (c *ConsoleOutput) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.writer, "%s%s\n", c.prefix(), text)
	return err
}

// WriteProgress draws a progress bar for captured out of target bytes,
// overwriting the current line
func (c *ConsoleOutput) WriteProgress(captured, target int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frac := 1.0
	if target > 0 {
		frac = float64(captured) / float64(target)
	}
	frac = min(max(frac, 0), 1)

	bar := strings.Repeat("=", int(frac*50))
	_, err := fmt.Fprintf(c.writer, "\rRecording: [%-50s] %5.1f%%", bar, frac*100)
	return err
}

// Finalize ends a line started by WriteProgress
func (c *ConsoleOutput) Finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintln(c.writer)
	return err
}

// Clear clears the current line
func (c *ConsoleOutput) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.writer, "\r%80s\r", " ")
	return err
}

// Info writes an informational message
func (c *ConsoleOutput) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "%s[INFO] %s\n", c.prefix(), msg)
}

// Error writes an error message to the error writer
func (c *ConsoleOutput) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.errWriter, "%s[ERROR] %s\n", c.prefix(), msg)
}

// Status writes a status message (typically overwritten)
func (c *ConsoleOutput) Status(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "\r[*] %s", msg)
}

func (c *ConsoleOutput) prefix() string {
	if !c.showTimestamp {
		return ""
	}
	return fmt.Sprintf("[%s] ", time.Now().Format("15:04:05"))
}
