// Package backup renders the character collection into human export formats
// and manages the auto-backup slot. CSV and Markdown are write-only.
package backup

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kittclouds/roleforge/internal/store"
	"github.com/kittclouds/roleforge/pkg/pool"
)

// CSVHeader is the first row of WriteCSV.
var CSVHeader = []string{
	"Name", "Personality", "Backstory", "Avatar", "Avatar Color",
	"Created At", "Updated At", "Is Favorite", "Total Messages",
}

// WriteCSV writes one row per character. Cells are quoted per RFC 4180, so
// embedded quotes are doubled. Timestamps are RFC 3339 in UTC.
func WriteCSV(w io.Writer, snap *store.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	row := pool.GetStrings()
	defer pool.PutStrings(row)
	for _, c := range snap.Characters {
		*row = append((*row)[:0],
			c.Name,
			c.Personality.String(),
			c.Backstory,
			c.Avatar,
			c.AvatarColor,
			formatTime(c.CreatedAt),
			formatTime(c.UpdatedAt),
			strconv.FormatBool(c.IsFavorite),
			strconv.Itoa(c.MessageCount()),
		)
		if err := cw.Write(*row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarkdownOptions controls WriteMarkdown.
type MarkdownOptions struct {
	Title      string
	ExportedAt time.Time
	// Location formats dates. Nil means UTC.
	Location *time.Location
}

// DefaultTitle heads a Markdown export when no title is given.
const DefaultTitle = "RoleForge Character Database"

// WriteMarkdown writes a document with one numbered section per character,
// separated by horizontal rules.
func WriteMarkdown(w io.Writer, snap *store.Snapshot, opts MarkdownOptions) error {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ExportedAt.IsZero() {
		opts.ExportedAt = time.Now()
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	fmt.Fprintf(buf, "# %s\n\n", inline(opts.Title))
	fmt.Fprintf(buf, "**Export Date:** %s\n", opts.ExportedAt.In(opts.Location).Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(buf, "**Total Characters:** %d\n\n", len(snap.Characters))
	buf.WriteString("---\n\n")

	for i, c := range snap.Characters {
		fmt.Fprintf(buf, "## %d. %s\n\n", i+1, inline(c.Name))
		fmt.Fprintf(buf, "**Personality:** %s\n\n", c.Personality)
		fmt.Fprintf(buf, "**Backstory:**\n%s\n\n", block(c.Backstory))
		buf.WriteString("**Statistics:**\n")
		fmt.Fprintf(buf, "- Created: %s\n", time.UnixMilli(c.CreatedAt).In(opts.Location).Format("2006-01-02"))
		fmt.Fprintf(buf, "- Total Messages: %d\n", c.MessageCount())
		fmt.Fprintf(buf, "- Favorite: %s\n\n", yesNo(c.IsFavorite))
		buf.WriteString("---\n\n")
	}

	_, err := buf.WriteTo(w)
	return err
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// inline flattens text onto one line for use in headings.
func inline(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// breaking matches lines Markdown would read as a heading, rule or setext
// underline.
var breaking = regexp.MustCompile(`^\s*(#|[-=]+\s*$|(-\s*){3,}$|(\*\s*){3,}$|(_\s*){3,}$)`)

// block escapes lines of free text that would otherwise start a new section.
func block(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if breaking.MatchString(line) {
			trimmed := strings.TrimLeft(line, " \t")
			lines[i] = `\` + trimmed
		}
	}
	return strings.Join(lines, "\n")
}
