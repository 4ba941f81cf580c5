package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/valentindosimont/keyquery/internal/usage"
)

// byteOrderMark makes spreadsheet tools detect UTF-8
const byteOrderMark = "\ufeff"

// Header is the first CSV line
var Header = []string{"Time", "Model", "Use Time", "Prompt", "Completion", "Quota", "Content"}

// CSV encodes rows in display order. Every row is written, billable or not,
// with raw numeric values and the timestamp rendered by formatTime. Line
// breaks inside text fields are written as LF, so a field holding CRLF reads
// back with LF only.
func CSV(rows []usage.Row, formatTime func(int64) string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(byteOrderMark)

	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			formatTime(r.CreatedAt),
			normalizeNewlines(r.ModelName),
			strconv.Itoa(r.UseTime),
			strconv.Itoa(r.PromptTokens),
			strconv.Itoa(r.CompletionTokens),
			r.Quota.String(),
			normalizeNewlines(r.Content),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// FileName returns the default export name for a snapshot taken at t
func FileName(t time.Time) string {
	return "keyquery-usage-" + t.Format("20060102-150405") + ".csv"
}

// WriteFile writes data to dir/name, creating dir if needed, and returns the full path.
func WriteFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
