package export

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Clipboard is the system clipboard
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes through the OS clipboard
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// CopyError carries the text that could not be copied so the caller can show
// it for manual copying.
type CopyError struct {
	Text string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy to clipboard: %v", e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Copy places text on cb. Failures are returned as *CopyError.
func Copy(cb Clipboard, text string) error {
	if cb == nil {
		cb = SystemClipboard{}
	}
	if err := cb.WriteAll(text); err != nil {
		return &CopyError{Text: text, Err: err}
	}
	return nil
}
