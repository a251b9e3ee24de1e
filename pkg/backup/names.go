package backup

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kittclouds/roleforge/internal/store"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// FilePrefix starts every export file name.
const FilePrefix = "roleforge"

// FileName returns the download name for an export taken at t, e.g.
// roleforge-backup-2025-03-01.json. The date is the UTC calendar day.
func FileName(f Format, t time.Time) string {
	kind := "characters"
	if f == FormatJSON {
		kind = "backup"
	}
	return fmt.Sprintf("%s-%s-%s.%s", FilePrefix, kind, t.UTC().Format("2006-01-02"), f)
}

// Size describes the byte size of a JSON export.
type Size struct {
	Bytes int     `json:"bytes"`
	KB    float64 `json:"kb"`
	MB    float64 `json:"mb"`
}

// String renders the size in MB from one megabyte upward, otherwise in KB,
// with two decimals and grouped digits.
func (s Size) String() string {
	p := message.NewPrinter(language.English)
	if s.MB >= 1 {
		return p.Sprintf("%.2f MB", s.MB)
	}
	return p.Sprintf("%.2f KB", s.KB)
}

// SizeOf measures a blob.
func SizeOf(blob []byte) Size {
	return SizeOfBytes(len(blob))
}

// SizeOfBytes converts a byte count.
func SizeOfBytes(n int) Size {
	return Size{
		Bytes: n,
		KB:    float64(n) / 1024,
		MB:    float64(n) / (1024 * 1024),
	}
}

// DataSize measures the JSON export of snap.
func DataSize(snap *store.Snapshot) (Size, error) {
	blob, err := store.EncodeSnapshot(snap)
	if err != nil {
		return Size{}, err
	}
	return SizeOf(blob), nil
}
