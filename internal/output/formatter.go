package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary describes one finished recording
type Summary struct {
	Device    string        `json:"device"`
	Format    string        `json:"format"`
	Output    string        `json:"output,omitempty"`
	Requested time.Duration `json:"requested_ns"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Bytes     int64         `json:"bytes"`
	Target    int64         `json:"target_bytes"`
	Outcome   string        `json:"outcome"`
	Fault     string        `json:"fault,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Event represents a system event
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Formatter is the interface for output formatters
type Formatter interface {
	// WriteSummary writes the summary of a finished recording
	WriteSummary(summary Summary) error

	// WriteEvent writes a system event (e.g., hotkey pressed)
	WriteEvent(eventType, message string) error

	// Flush ensures all buffered output is written
	Flush() error

	// Close closes the formatter and releases resources
	Close() error
}

// NewFormatter returns the formatter for the named format
func NewFormatter(format string, writer io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONFormatter(writer), nil
	case "text", "":
		return NewPlainTextFormatter(writer), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (valid: json, text)", format)
	}
}

// JSONFormatter outputs one JSON document per summary or event
type JSONFormatter struct {
	writer    io.Writer
	encoder   *json.Encoder
	summaries []Summary
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	return &JSONFormatter{
		writer:  writer,
		encoder: encoder,
	}
}

// WriteSummary writes a summary in JSON format
func (j *JSONFormatter) WriteSummary(summary Summary) error {
	j.summaries = append(j.summaries, summary)
	return j.encoder.Encode(summary)
}

// WriteEvent writes a system event
func (j *JSONFormatter) WriteEvent(eventType, message string) error {
	event := Event{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
	return j.encoder.Encode(event)
}

// Flush is a no-op, the encoder writes immediately
func (j *JSONFormatter) Flush() error {
	return nil
}

// Close closes the formatter
func (j *JSONFormatter) Close() error {
	return nil
}

// Summaries returns all summaries written so far
func (j *JSONFormatter) Summaries() []Summary {
	return j.summaries
}

// PlainTextFormatter outputs summaries in plain text format
type PlainTextFormatter struct {
	writer io.Writer
}

// NewPlainTextFormatter creates a new plain text formatter
func NewPlainTextFormatter(writer io.Writer) *PlainTextFormatter {
	return &PlainTextFormatter{
		writer: writer,
	}
}

// WriteSummary writes a summary in plain text
func (p *PlainTextFormatter) WriteSummary(s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %d/%d bytes in %s from %s (%s)\n",
		s.Timestamp.Format("15:04:05"), s.Outcome, s.Bytes, s.Target,
		s.Elapsed.Round(time.Millisecond), s.Device, s.Format)
	if s.Output != "" {
		fmt.Fprintf(&b, "  output: %s\n", s.Output)
	}
	if s.Fault != "" {
		fmt.Fprintf(&b, "  fault: %s\n", s.Fault)
	}

	_, err := io.WriteString(p.writer, b.String())
	return err
}

// WriteEvent writes a system event
func (p *PlainTextFormatter) WriteEvent(eventType, message string) error {
	timestamp := time.Now().Format("15:04:05")
	text := fmt.Sprintf("[%s] [%s] %s\n", timestamp, eventType, message)
	_, err := p.writer.Write([]byte(text))
	return err
}

// Flush ensures all buffered output is written
func (p *PlainTextFormatter) Flush() error {
	return nil
}

// Close closes the formatter
func (p *PlainTextFormatter) Close() error {
	return nil
}
