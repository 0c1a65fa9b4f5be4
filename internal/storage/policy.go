package storage

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file is too large")
	ErrExtension       = errors.New("file type not accepted")
	ErrContentMismatch = errors.New("file content does not match its extension")
)

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// Policy limits what may be uploaded into a document slot.
type Policy struct {
	MaxBytes   int64
	Extensions []string
}

func DefaultPolicy() Policy {
	return Policy{MaxBytes: 10 << 20, Extensions: []string{".pdf", ".jpg", ".jpeg", ".png"}}
}

// Check validates the declared name and size of a file.
func (p Policy) Check(ext string, size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, size, p.MaxBytes)
	}
	if !p.accepts(ext) {
		return fmt.Errorf("%w: %q", ErrExtension, ext)
	}
	return nil
}

func (p Policy) accepts(ext string) bool {
	for _, e := range p.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// ContentType sniffs the first bytes of a file and checks them against the
// extension. Unknown extensions accepted by the policy keep the sniffed type.
func ContentType(ext string, head []byte) (string, error) {
	sniffed := http.DetectContentType(head)
	if i := strings.Index(sniffed, ";"); i >= 0 {
		sniffed = sniffed[:i]
	}
	want, known := contentTypes[strings.ToLower(ext)]
	if !known {
		return sniffed, nil
	}
	if sniffed != want {
		return "", fmt.Errorf("%w: %s detected as %s", ErrContentMismatch, ext, sniffed)
	}
	return want, nil
}
