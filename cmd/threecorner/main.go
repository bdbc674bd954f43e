// threecorner is the command-line front end of the threecorner input method.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"threecorner/internal/cin"
	"threecorner/internal/config"
	"threecorner/internal/host"
	"threecorner/internal/logging"
	"threecorner/internal/service"
	"threecorner/internal/store"
)

var (
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Usage = usage
	flag.Parse()
	if *configPath == "" {
		*configPath = config.FindConfigFile()
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	switch cmd {
	case "init":
		cmdInit()
	case "term":
		cmdTerm(args)
	case "lookup":
		cmdLookup(args)
	case "reverse":
		cmdReverse(args)
	case "validate":
		cmdValidate(args)
	case "phrase":
		cmdPhrase(args)
	case "stats":
		cmdStats(args)
	case "db":
		cmdDB(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `threecorner - table-driven Chinese input method

Usage: threecorner [-config path] <command> [options]

Commands:
  init                          Write the default configuration and create directories
  term [-keypad]                Type into an interactive terminal session
  lookup [-scheme s] <code>     List the candidates of a code ('*' is a wildcard)
  reverse [-scheme s] <text>    Show the codes of each character of text
  validate [files...]           Check table files and the configuration
  phrase add <code> <value>     Add a user phrase
  phrase list                   List user phrases
  phrase rm <id>                Delete a user phrase
  stats [-n count]              Show commit statistics
  db status                     Show the database schema version
  db redo                       Re-create the newest schema tables (erases their rows)
  help                          Show this help

Options:
  -config string                Path to config file (default ./config.toml or %s)
`, config.ConfigPath())
}

func fail(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("loading config: %v", err)
	}
	return cfg
}

func cmdInit() {
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		fail("%v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fail("creating directories: %v", err)
	}

	if created {
		fmt.Printf("Wrote default configuration to %s\n", path)
	} else {
		fmt.Printf("Configuration already exists at %s\n", path)
	}
	fmt.Printf("Tables:   %s\n", cfg.Tables.Dir)
	if cfg.Storage.Path != "" {
		fmt.Printf("Database: %s\n", cfg.Storage.Path)
	}
	fmt.Printf("Scheme:   %s\n", cfg.Input.Scheme)
}

func cmdTerm(args []string) {
	fs := flag.NewFlagSet("term", flag.ExitOnError)
	keypad := fs.Bool("keypad", true, "treat main-row digits and operators as keypad keys")
	fs.Parse(args)

	cfg := loadConfig()
	// The screen owns stdout.
	if cfg.Logging.Output != "discard" {
		cfg.Logging.Output = "file"
	}
	lc, err := cfg.LoggerConfig()
	if err != nil {
		fail("%v", err)
	}
	log, err := logging.New(lc)
	if err != nil {
		fail("creating logger: %v", err)
	}
	defer log.Close()

	svc, err := service.New(cfg, service.WithLogger(log))
	if err != nil {
		fail("%v", err)
	}
	defer svc.Close()
	if err := svc.Start(); err != nil {
		fail("%v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fail("opening terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		fail("initializing terminal: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	term := host.NewTerminal(screen, *keypad, log)
	engine := svc.NewEngine(term)
	runErr := term.Run(ctx, engine)
	svc.Release(engine)
	screen.Fini()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fail("%v", runErr)
	}
	if text := term.Text(); text != "" {
		fmt.Println(text)
	}
}

// primaryTable loads scheme from the table directory with the user
// phrases merged in.
func primaryTable(ctx context.Context, cfg *config.Config, scheme string) (*cin.Table, func()) {
	var st *store.Store
	if cfg.Storage.Path != "" {
		if _, err := os.Stat(cfg.Storage.Path); err == nil {
			if st, err = store.Open(cfg.Storage.Path); err != nil {
				fail("opening database: %v", err)
			}
		}
	}
	closeStore := func() {
		if st != nil {
			st.Close()
		}
	}

	src := &cin.DirSource{Dir: cfg.Tables.Dir, Extend: service.PhraseExtension(ctx, st)}
	t, err := src.Load(ctx, cin.KindPrimary, scheme)
	if err != nil {
		closeStore()
		fail("loading %s: %v", src.Path(scheme), err)
	}
	return t, closeStore
}

func cmdLookup(args []string) {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	scheme := fs.String("scheme", "", "code table (default from config)")
	limit := fs.Int("n", 9, "maximum wildcard results")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: threecorner lookup [-scheme s] [-n max] <code>")
		os.Exit(1)
	}
	cfg := loadConfig()
	if *scheme == "" {
		*scheme = cfg.Input.Scheme
	}
	ctx := context.Background()
	t, done := primaryTable(ctx, cfg, *scheme)
	defer done()

	code := fs.Arg(0)
	var cands []string
	if strings.ContainsRune(code, '*') {
		cands = t.LookupWildcard(code, '*', *limit)
	} else {
		var err error
		cands, err = t.Lookup(code)
		if err != nil && !errors.Is(err, cin.ErrNoMatch) {
			fail("%v", err)
		}
	}

	if len(cands) == 0 {
		fmt.Printf("%s: no candidates\n", t.Render(code))
		os.Exit(1)
	}
	fmt.Printf("%s (%s)\n", t.Render(code), code)
	for i, c := range cands {
		fmt.Printf("  %d. %s\n", i+1, c)
	}
}

func cmdReverse(args []string) {
	fs := flag.NewFlagSet("reverse", flag.ExitOnError)
	scheme := fs.String("scheme", "", "code table (default from config)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: threecorner reverse [-scheme s] <text>")
		os.Exit(1)
	}
	cfg := loadConfig()
	if *scheme == "" {
		*scheme = cfg.Input.Scheme
	}
	ctx := context.Background()
	t, done := primaryTable(ctx, cfg, *scheme)
	defer done()

	missing := 0
	for _, r := range strings.Join(fs.Args(), "") {
		codes := t.Codes(string(r))
		if len(codes) == 0 {
			fmt.Printf("%c  -\n", r)
			missing++
			continue
		}
		shown := make([]string, len(codes))
		for i, c := range codes {
			shown[i] = fmt.Sprintf("%s (%s)", t.Render(c), c)
		}
		fmt.Printf("%c  %s\n", r, strings.Join(shown, ", "))
	}
	if missing > 0 {
		os.Exit(1)
	}
}

func cmdValidate(args []string) {
	failed := false

	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed = true
		} else {
			fmt.Printf("ok   %s\n", path)
		}
	}

	if cfg, err := config.Load(path); err == nil && cfg.Storage.Path != "" {
		if _, err := os.Stat(cfg.Storage.Path); err == nil {
			st, err := store.Open(cfg.Storage.Path)
			if err == nil {
				err = store.ValidateSchema(st.DB())
				st.Close()
			}
			if err != nil {
				fmt.Printf("FAIL %s: %v\n", cfg.Storage.Path, err)
				failed = true
			} else {
				fmt.Printf("ok   %s\n", cfg.Storage.Path)
			}
		}
	}

	for _, file := range args {
		data, err := os.ReadFile(file)
		if err == nil {
			err = cin.Validate(data)
		}
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", file, err)
			failed = true
			continue
		}
		t, err := cin.LoadFile(file)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", file, err)
			failed = true
			continue
		}
		fmt.Printf("ok   %s (%d codes)\n", file, t.Len())
	}

	if failed {
		os.Exit(1)
	}
}

// openStore opens the configured database for the phrase and stats commands.
func openStore(cfg *config.Config) *store.Store {
	if cfg.Storage.Path == "" {
		fail("storage is disabled (storage.path is empty)")
	}
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		fail("opening database: %v", err)
	}
	return st
}

func cmdPhrase(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: threecorner phrase add|list|rm ...")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("phrase", flag.ExitOnError)
	scheme := fs.String("scheme", "", "code table (default from config)")
	priority := fs.Bool("priority", false, "list the phrase ahead of table candidates")
	fs.Parse(args[1:])

	cfg := loadConfig()
	if *scheme == "" {
		*scheme = cfg.Input.Scheme
	}
	st := openStore(cfg)
	defer st.Close()
	ctx := context.Background()

	switch args[0] {
	case "add":
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: threecorner phrase add [-scheme s] [-priority] <code> <value>")
			os.Exit(1)
		}
		id, err := st.AddPhrase(ctx, store.Phrase{
			Scheme:   *scheme,
			Code:     fs.Arg(0),
			Value:    fs.Arg(1),
			Priority: *priority,
		})
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Added phrase %d: %s → %s\n", id, fs.Arg(0), fs.Arg(1))

	case "list", "ls":
		phrases, err := st.Phrases(ctx, *scheme)
		if err != nil {
			fail("%v", err)
		}
		if len(phrases) == 0 {
			fmt.Printf("No phrases for %s\n", *scheme)
			return
		}
		fmt.Printf("%-6s %-8s %-10s %s\n", "ID", "CODE", "VALUE", "ADDED")
		for _, p := range phrases {
			mark := ""
			if p.Priority {
				mark = " *"
			}
			fmt.Printf("%-6d %-8s %-10s %s%s\n", p.ID, p.Code, p.Value,
				p.CreatedAt.Local().Format("2006-01-02"), mark)
		}

	case "rm", "delete":
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "Usage: threecorner phrase rm <id>")
			os.Exit(1)
		}
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			fail("invalid id %q", fs.Arg(0))
		}
		if err := st.DeletePhrase(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fail("phrase %d not found", id)
			}
			fail("%v", err)
		}
		fmt.Printf("Deleted phrase %d\n", id)

	default:
		fmt.Fprintf(os.Stderr, "Unknown phrase command: %s\n", args[0])
		os.Exit(1)
	}
}

func cmdStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	scheme := fs.String("scheme", "", "code table (default from config)")
	n := fs.Int("n", 10, "number of frequent commits to show")
	fs.Parse(args)

	cfg := loadConfig()
	if *scheme == "" {
		*scheme = cfg.Input.Scheme
	}
	st := openStore(cfg)
	defer st.Close()
	ctx := context.Background()

	stats, err := st.Stats(ctx)
	if err != nil {
		fail("%v", err)
	}
	fmt.Printf("Phrases:        %d\n", stats.Phrases)
	fmt.Printf("Commits:        %d\n", stats.Commits)
	fmt.Printf("Distinct texts: %d\n", stats.DistinctTexts)
	if stats.FirstCommit != nil {
		fmt.Printf("First commit:   %s\n", stats.FirstCommit.Local().Format(time.RFC3339))
	}
	if stats.LastCommit != nil {
		fmt.Printf("Last commit:    %s\n", stats.LastCommit.Local().Format(time.RFC3339))
	}
	if !cfg.Storage.RecordCommits {
		fmt.Println("\nCommit recording is off (storage.record_commits).")
		return
	}

	top, err := st.TopCommits(ctx, *scheme, *n)
	if err != nil {
		fail("%v", err)
	}
	if len(top) == 0 {
		return
	}
	fmt.Printf("\nMost committed (%s):\n", *scheme)
	for i, c := range top {
		fmt.Printf("  %2d. %s  %-8s %d\n", i+1, c.Text, c.Code, c.Count)
	}
}

func cmdDB(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: threecorner db status|redo")
		os.Exit(1)
	}
	st := openStore(loadConfig())
	defer st.Close()

	switch args[0] {
	case "status":
		status, err := store.GetMigrationStatus(st.DB())
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Schema version: %d\n", status.CurrentVersion)
		for _, m := range status.Applied {
			fmt.Printf("  applied %d  %-20s %s\n", m.Version, m.Description,
				m.AppliedAt.Local().Format(time.RFC3339))
		}
		for _, m := range status.Pending {
			fmt.Printf("  pending %d  %s\n", m.Version, m.Description)
		}
		if err := store.ValidateSchema(st.DB()); err != nil {
			fmt.Printf("Schema check failed: %v\n", err)
			os.Exit(1)
		}

	case "redo":
		if err := store.RollbackMigration(st.DB()); err != nil {
			fail("%v", err)
		}
		if err := store.MigrateDB(st.DB()); err != nil {
			fail("%v", err)
		}
		if err := store.ValidateSchema(st.DB()); err != nil {
			fail("%v", err)
		}
		status, err := store.GetMigrationStatus(st.DB())
		if err != nil {
			fail("%v", err)
		}
		fmt.Printf("Re-applied schema version %d\n", status.CurrentVersion)

	default:
		fmt.Fprintf(os.Stderr, "Unknown db command: %s\n", args[0])
		os.Exit(1)
	}
}
