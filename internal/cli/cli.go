// Package cli implements the roleforge command line tool over a SQLite file.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kittclouds/roleforge/internal/app"
	"github.com/kittclouds/roleforge/internal/config"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/internal/store"
	"github.com/kittclouds/roleforge/pkg/analytics"
	"github.com/kittclouds/roleforge/pkg/backup"
	"github.com/kittclouds/roleforge/pkg/roster"
	"github.com/kittclouds/roleforge/pkg/search"
)

const defaultDBPath = "roleforge.db"

// Usage lists the subcommands.
const Usage = `usage: roleforge [flags] <command> [args]

commands:
  list                         list characters
  add NAME [PERSONALITY] [BACKSTORY]
  template [ID]                list templates (-category, -query), or create a character from one
  chat ID TEXT...              send a message and print the reply
  delete ID                    delete a character and its conversations
  favorite ID                  toggle a character's favorite flag
  history                      list conversations (-sort, -query)
  search QUERY                 search names, backstories and messages
  stats                        print the analytics report (-window)
  export json|csv|md           write an export (-out)
  import FILE                  replace all data with a JSON export
  backup | restore             write or restore the auto-backup slot
  demo                         seed characters from templates and chat
  info                         print storage versions and data size
  reset                        delete everything`

// Config holds the parsed command line.
type Config struct {
	App      config.Config
	Command  string
	Args     []string
	Out      string
	Window   string
	Sort     string
	Query    string
	Category string
	Verbose  bool
}

// ParseConfig parses flags on top of the environment configuration.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	base, err := config.Load()
	if err != nil {
		return Config{}, err
	}
	if _, ok := os.LookupEnv("ROLEFORGE_DSN"); !ok {
		base.DSN = defaultDBPath
	}

	cfg := Config{App: base}
	fs.StringVar(&cfg.App.DSN, "db", cfg.App.DSN, "SQLite database path (empty for a throwaway in-memory store)")
	fs.StringVar(&cfg.Out, "out", "", "export destination file or directory (default stdout)")
	fs.StringVar(&cfg.Window, "window", string(analytics.WindowAll), "analytics window (all, week, month, year)")
	fs.StringVar(&cfg.Sort, "sort", "", "history sort (recent, oldest, longest, shortest, name)")
	fs.StringVar(&cfg.Query, "query", "", "history or template filter")
	fs.StringVar(&cfg.Category, "category", roster.AllCategories, "template category")
	fs.Uint64Var(&cfg.App.Reply.Seed, "seed", cfg.App.Reply.Seed, "mock reply seed (0 = random)")
	fs.BoolVar(&cfg.Verbose, "v", false, "log to stderr")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return Config{}, errors.New("command is required")
	}
	cfg.Command = rest[0]
	cfg.Args = rest[1:]
	return cfg, nil
}

// Run executes one command against the configured database.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if out == nil {
		out = io.Discard
	}

	log := logger.Discard()
	if cfg.Verbose {
		log = logger.New(logger.Config{Level: cfg.App.LogLevel, JSON: cfg.App.LogJSON})
	}

	a, err := app.New(ctx, cfg.App, app.Deps{Logger: log})
	if err != nil {
		return err
	}
	defer a.Close()

	r := &runner{ctx: ctx, cfg: cfg, app: a, out: out}
	switch cfg.Command {
	case "list":
		return r.list()
	case "add":
		return r.add()
	case "template":
		return r.template()
	case "chat":
		return r.chat()
	case "delete":
		return r.delete()
	case "favorite":
		return r.favorite()
	case "history":
		return r.history()
	case "search":
		return r.search()
	case "stats":
		return r.stats()
	case "export":
		return r.export()
	case "import":
		return r.importFile()
	case "backup":
		return r.backup()
	case "restore":
		return r.restore()
	case "demo":
		return r.demo()
	case "info":
		return r.info()
	case "reset":
		return a.Roster.Reset()
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}
}

type runner struct {
	ctx context.Context
	cfg Config
	app *app.App
	out io.Writer
}

func (r *runner) arg(i int, name string) (string, error) {
	if i >= len(r.cfg.Args) || strings.TrimSpace(r.cfg.Args[i]) == "" {
		return "", fmt.Errorf("%s: %s is required", r.cfg.Command, name)
	}
	return r.cfg.Args[i], nil
}

func (r *runner) list() error {
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPERSONALITY\tFAV\tMESSAGES\tLAST ACTIVE")
	for _, c := range r.app.Roster.List() {
		fav := ""
		if c.IsFavorite {
			fav = "★"
		}
		last := time.UnixMilli(c.LastActivity()).Format(time.DateTime)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", c.ID, c.Name, c.Personality, fav, c.MessageCount(), last)
	}
	return tw.Flush()
}

func (r *runner) add() error {
	name, err := r.arg(0, "NAME")
	if err != nil {
		return err
	}
	f := roster.Fields{Name: name}
	if len(r.cfg.Args) > 1 {
		f.Personality = r.cfg.Args[1]
	}
	if len(r.cfg.Args) > 2 {
		f.Backstory = strings.Join(r.cfg.Args[2:], " ")
	}
	id, err := r.app.Roster.AddCharacter(f)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, id)
	return nil
}

func (r *runner) template() error {
	if len(r.cfg.Args) == 0 {
		found, err := roster.FindTemplates(r.cfg.Category, r.cfg.Query)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "categories: %s, %s\n\n", roster.AllCategories, strings.Join(roster.Categories(), ", "))
		tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tPERSONALITY\tCATEGORY")
		for _, t := range found {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Personality, t.Category)
		}
		return tw.Flush()
	}
	id, err := r.app.Roster.AddFromTemplate(r.cfg.Args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, id)
	return nil
}

func (r *runner) chat() error {
	id, err := r.arg(0, "ID")
	if err != nil {
		return err
	}
	text := strings.Join(r.cfg.Args[1:], " ")
	if err := r.app.Roster.SetActiveCharacter(id); err != nil {
		return err
	}
	return r.send(text)
}

func (r *runner) send(text string) error {
	ex, err := r.app.Roster.SendMessage(r.ctx, text)
	if err != nil {
		return err
	}
	c, err := r.app.Roster.Get(ex.CharacterID)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "you: %s\n%s: %s\n", ex.User.Text, c.Name, ex.Reply.Text)
	return nil
}

func (r *runner) delete() error {
	id, err := r.arg(0, "ID")
	if err != nil {
		return err
	}
	return r.app.Roster.DeleteCharacter(id)
}

func (r *runner) favorite() error {
	id, err := r.arg(0, "ID")
	if err != nil {
		return err
	}
	fav, err := r.app.Roster.ToggleFavorite(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "favorite: %t\n", fav)
	return nil
}

func (r *runner) history() error {
	h, err := search.Conversations(r.app.Roster.Snapshot(), search.HistoryQuery{
		Query: r.cfg.Query,
		Sort:  search.HistorySort(r.cfg.Sort),
	})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHARACTER\tMESSAGES\tLAST\tPREVIEW")
	for _, e := range h.Entries {
		last := "-"
		if e.LastMessageTime > 0 {
			last = time.UnixMilli(e.LastMessageTime).Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.CharacterName, e.MessageCount, last, preview(e.LastMessageText, 48))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "\n%d conversations, %d messages, %d avg\n",
		h.Stats.TotalConversations, h.Stats.TotalMessages, h.Stats.AvgMessagesPerConv)
	return nil
}

func (r *runner) search() error {
	q := strings.Join(r.cfg.Args, " ")
	results, err := search.Global(r.app.Roster.Snapshot(), q)
	if err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintf(r.out, "[%s] %s: %s\n", res.Kind, res.CharacterName, preview(res.Text, 72))
	}
	counts := search.CountByKind(results)
	fmt.Fprintf(r.out, "%d results (%d names, %d backstories, %d messages)\n", len(results),
		counts[search.KindCharacterName], counts[search.KindBackstory], counts[search.KindMessage])
	return nil
}

func (r *runner) stats() error {
	rep, err := analytics.Compute(r.app.Roster.Snapshot(), analytics.Options{
		Window:   analytics.Window(r.cfg.Window),
		Location: time.Local,
		TopN:     5,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "window:            %s\n", rep.Window)
	fmt.Fprintf(r.out, "messages:          %d (%d user, %d character)\n", rep.TotalMessages, rep.UserMessages, rep.CharacterMessages)
	fmt.Fprintf(r.out, "peak hour:         %02d:00\n", rep.PeakHour)
	fmt.Fprintf(r.out, "peak day:          %s\n", rep.PeakDayName)
	fmt.Fprintf(r.out, "engagement rate:   %.1f%%\n", rep.EngagementRate)
	fmt.Fprintf(r.out, "avg reply length:  %d\n", rep.AvgReplyLength)
	fmt.Fprintf(r.out, "messages per day:  %.1f\n", rep.AvgMessagesPerDay)
	for i, a := range rep.Ranking {
		fmt.Fprintf(r.out, "#%d %s (%s): %d\n", i+1, a.Name, a.Personality, a.Messages)
	}
	for _, p := range rep.Personalities {
		fmt.Fprintf(r.out, "%-12s %3d  %.1f%%\n", p.Personality, p.Count, p.Percent)
	}
	return nil
}

func (r *runner) export() error {
	name, err := r.arg(0, "FORMAT")
	if err != nil {
		return err
	}
	format := backup.Format(name)
	if !slices.Contains([]backup.Format{backup.FormatJSON, backup.FormatCSV, backup.FormatMarkdown}, format) {
		return fmt.Errorf("export: unknown format %q", name)
	}
	snap := r.app.Roster.Snapshot()

	if r.cfg.Out == "" {
		return writeExport(r.out, format, snap)
	}

	path := r.cfg.Out
	if fi, statErr := os.Stat(path); statErr == nil && fi.IsDir() {
		path = filepath.Join(path, backup.FileName(format, time.Now()))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	return closeWith(f, writeExport(f, format, snap))
}

func writeExport(w io.Writer, format backup.Format, snap *store.Snapshot) error {
	switch format {
	case backup.FormatCSV:
		return backup.WriteCSV(w, snap)
	case backup.FormatMarkdown:
		return backup.WriteMarkdown(w, snap, backup.MarkdownOptions{Location: time.Local})
	default:
		data, err := store.EncodeSnapshot(snap)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
}

// closeWith closes c and returns err, or the close error when err is nil.
func closeWith(c io.Closer, err error) error {
	if cerr := c.Close(); cerr != nil && err == nil {
		return fmt.Errorf("close export: %w", cerr)
	}
	return err
}

func (r *runner) importFile() error {
	path, err := r.arg(0, "FILE")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}
	if err := r.app.Roster.ImportData(data); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "imported %d characters\n", r.app.Roster.Len())
	return nil
}

func (r *runner) backup() error {
	slot, err := r.app.Backup.Create(r.ctx, r.app.Roster)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "backup at %s (%s)\n", slot.Timestamp, backup.SizeOf([]byte(slot.Data)))
	return nil
}

func (r *runner) restore() error {
	if err := r.app.Backup.Restore(r.ctx, r.app.Roster); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "restored %d characters\n", r.app.Roster.Len())
	return nil
}

// sqliteInfo is implemented by the SQLite adapter.
type sqliteInfo interface {
	Version(ctx context.Context) (string, error)
	VecVersion(ctx context.Context) (string, error)
	List(ctx context.Context) ([]*store.BlobInfo, error)
}

func (r *runner) info() error {
	switch s := r.app.Store.(type) {
	case sqliteInfo:
		sqlite, err := s.Version(r.ctx)
		if err != nil {
			return err
		}
		vec, err := s.VecVersion(r.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "sqlite:      %s (sqlite-vec %s)\n", sqlite, vec)
		blobs, err := s.List(r.ctx)
		if err != nil {
			return err
		}
		for _, b := range blobs {
			fmt.Fprintf(r.out, "key:         %s (%s, revision %d)\n", b.Key, backup.SizeOfBytes(b.Size), b.Revision)
		}
	case *store.MemoryStore:
		fmt.Fprintln(r.out, "sqlite:      none (in-memory store)")
		keys := s.Keys()
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(r.out, "key:         %s\n", k)
		}
	}
	size, err := backup.DataSize(r.app.Roster.Snapshot())
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "characters:  %d\n", r.app.Roster.Len())
	fmt.Fprintf(r.out, "data size:   %s\n", size)
	return nil
}

var demoLines = []string{
	"Hello there! What brings you here today?",
	"Tell me about the strangest thing you've seen.",
}

func (r *runner) demo() error {
	var ids []string
	for _, t := range roster.Templates() {
		id, err := r.app.Roster.AddFromTemplate(t.ID)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	for _, id := range ids[:min(2, len(ids))] {
		if err := r.app.Roster.SetActiveCharacter(id); err != nil {
			return err
		}
		for _, line := range demoLines {
			if err := r.send(line); err != nil {
				return err
			}
		}
	}
	fmt.Fprintf(r.out, "seeded %d characters\n", len(ids))
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if rs := []rune(s); len(rs) > n {
		return string(rs[:n-1]) + "…"
	}
	return s
}
