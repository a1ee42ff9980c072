// Package sink writes flattened extraction records to their final
// destination.
package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"chatdump/internal/extract"
)

// Sink receives the complete record set of a run as one batch.
type Sink interface {
	Write(records []extract.Record) error
}

// Format names for ForPath.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

// ForPath returns a file sink for the given format.
func ForPath(format, path string) (Sink, error) {
	switch format {
	case FormatJSON:
		return &JSONSink{Path: path}, nil
	case FormatJSONL:
		return &JSONLSink{Path: path}, nil
	case FormatCSV:
		return &CSVSink{Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json, jsonl or csv)", format)
	}
}

// JSONSink writes the records as one indented JSON array.
type JSONSink struct {
	Path string
}

func (s *JSONSink) Write(records []extract.Record) error {
	f, err := create(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// JSONLSink writes one JSON object per line.
type JSONLSink struct {
	Path string
}

func (s *JSONLSink) Write(records []extract.Record) error {
	f, err := create(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return nil
}

// CSVSink writes the records as CSV with a header row. Null fields become
// empty cells.
type CSVSink struct {
	Path string
}

var csvHeader = []string{
	"conversation_id", "customer_name", "customer_email", "channel_name",
	"message_type", "sender_name", "content", "created_at_iso", "agent_email",
}

func (s *CSVSink) Write(records []extract.Record) error {
	f, err := create(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			strconv.FormatInt(rec.ConversationID, 10),
			rec.CustomerName,
			rec.CustomerEmail,
			rec.ChannelName,
			rec.MessageType,
			rec.SenderName,
			rec.Content,
			deref(rec.CreatedAtISO),
			deref(rec.AgentEmail),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
