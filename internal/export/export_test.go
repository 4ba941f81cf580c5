package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valentindosimont/keyquery/internal/usage"
)

func formatUnix(sec int64) string {
	return strconv.FormatInt(sec, 10)
}

func TestCSVRoundTrip(t *testing.T) {
	rows, _ := usage.Normalize([]usage.Record{
		{CreatedAt: 100, ModelName: `gpt "turbo", v2`, UseTime: 3, PromptTokens: 10, CompletionTokens: 5, Quota: decimal.NewFromInt(42), Type: 2},
		{CreatedAt: 50, ModelName: "", Type: 4, Quota: decimal.NewFromInt(7), Content: "line1\nline2"},
	})

	data, err := CSV(rows, formatUnix)
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte(byteOrderMark)) {
		t.Fatal("CSV output does not start with a byte order mark")
	}

	records, err := csv.NewReader(bytes.NewReader(data[len(byteOrderMark):])).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, h := range Header {
		if records[0][i] != h {
			t.Errorf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	first := records[1]
	if first[0] != "100" || first[1] != `gpt "turbo", v2` || first[2] != "3" || first[5] != "42" {
		t.Errorf("first row = %v", first)
	}
	second := records[2]
	if second[5] != "7" || second[6] != "line1\nline2" {
		t.Errorf("informational row = %v", second)
	}
}

func TestCSVNormalizesCRLF(t *testing.T) {
	rows, _ := usage.Normalize([]usage.Record{{Type: 1, Content: "first\r\nsecond"}})

	data, err := CSV(rows, formatUnix)
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	if bytes.Contains(data, []byte("first\r\n")) {
		t.Error("CRLF inside a field was written unchanged")
	}

	records, err := csv.NewReader(bytes.NewReader(data[len(byteOrderMark):])).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got := records[1][6]; got != "first\nsecond" {
		t.Errorf("content = %q, want %q", got, "first\nsecond")
	}
}

func TestCSVEmpty(t *testing.T) {
	data, err := CSV(nil, formatUnix)
	if err != nil {
		t.Fatalf("CSV() error = %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data[len(byteOrderMark):])).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want header only", len(records))
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 6, 13, 9, 5, 7, 0, time.UTC)
	if got := FileName(at); got != "keyquery-usage-20240613-090507.csv" {
		t.Errorf("FileName() = %s", got)
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WriteFile(dir, "out.csv", []byte("a,b\n"))
	if err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "a,b\n" {
		t.Errorf("content = %q", got)
	}
}

type failingClipboard struct{}

func (failingClipboard) WriteAll(string) error {
	return errors.New("no clipboard utility")
}

type memClipboard struct {
	text string
}

func (m *memClipboard) WriteAll(text string) error {
	m.text = text
	return nil
}

func TestCopy(t *testing.T) {
	mem := &memClipboard{}
	if err := Copy(mem, "hello"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if mem.text != "hello" {
		t.Errorf("clipboard = %q, want hello", mem.text)
	}
}

func TestCopyFailureKeepsText(t *testing.T) {
	err := Copy(failingClipboard{}, "Remaining: $1.00")

	var copyErr *CopyError
	if !errors.As(err, &copyErr) {
		t.Fatalf("Copy() error = %v, want *CopyError", err)
	}
	if copyErr.Text != "Remaining: $1.00" {
		t.Errorf("CopyError.Text = %q", copyErr.Text)
	}
}
