package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/takak2166/onenotecli/internal/auth"
	"github.com/takak2166/onenotecli/internal/config"
	"github.com/takak2166/onenotecli/internal/hierarchy"
	"github.com/takak2166/onenotecli/internal/logger"
	"github.com/takak2166/onenotecli/internal/markup"
	"github.com/takak2166/onenotecli/internal/models"
	"github.com/takak2166/onenotecli/internal/onenote"
	"github.com/takak2166/onenotecli/internal/printer"
	"golang.org/x/term"
)

type options struct {
	pages     bool
	notebooks bool
	sections  bool
	long      bool
	byTime    bool
	content   string
	html      bool
	tree      bool
	update    bool
	logLevel  string
	create    string
	inSection string

	authorize    bool
	registration config.Registration

	files []string
}

// needsHierarchy reports whether any requested action reads the hierarchy
func (o *options) needsHierarchy() bool {
	return o.pages || o.notebooks || o.sections || o.content != "" || o.tree || o.create != "" || o.update
}

func parseOptions(args []string, output io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("onenotecli", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.BoolVar(&o.pages, "p", false, "print the list of pages")
	fs.BoolVar(&o.pages, "pages", false, "print the list of pages")
	fs.BoolVar(&o.notebooks, "n", false, "print the list of notebooks")
	fs.BoolVar(&o.notebooks, "notebooks", false, "print the list of notebooks")
	fs.BoolVar(&o.sections, "s", false, "print the list of sections")
	fs.BoolVar(&o.sections, "sections", false, "print the list of sections")
	fs.BoolVar(&o.long, "l", false, "use a long listing format")
	fs.BoolVar(&o.byTime, "t", false, "sort by modification time, last first")
	fs.StringVar(&o.content, "c", "", "print content of the page")
	fs.StringVar(&o.content, "page-content", "", "print content of the page")
	fs.BoolVar(&o.html, "html", false, "print content of the page in HTML format")
	fs.BoolVar(&o.tree, "tree", false, "print OneNote structure in tree-like format")
	fs.BoolVar(&o.update, "u", false, "update OneNote structure from server")
	fs.BoolVar(&o.update, "update", false, "update OneNote structure from server")
	fs.StringVar(&o.logLevel, "log", "", "set log level (info, debug etc)")
	fs.StringVar(&o.create, "create-page", "", "create page in section (--in-section=<sec_name>)")
	fs.StringVar(&o.inSection, "in-section", "", "section to create page in")
	fs.BoolVar(&o.authorize, "auth", false, "run authorization in OneNote Online")
	fs.StringVar(&o.registration.ClientID, "client_id", "", "client_id for authorization")
	fs.StringVar(&o.registration.ClientSecret, "client_secret", "", "client_secret for authorization")
	fs.StringVar(&o.registration.RedirectURL, "redirect_url", "", "redirect_url for authorization")
	fs.StringVar(&o.registration.Scope, "scope", "", "scope for authorization")

	// Positional files may appear between flags.
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		o.files = append(o.files, fs.Arg(0))
		args = fs.Args()[1:]
	}
	return o, nil
}

// readBody returns the page body from the first file, or from stdin
func readBody(files []string, stdin io.Reader, hint io.Writer) (string, error) {
	if len(files) > 0 {
		data, err := os.ReadFile(files[0])
		if err != nil {
			return "", fmt.Errorf("failed to read page body: %w", err)
		}
		return string(data), nil
	}

	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintln(hint, "Reading page body from stdin, finish with Ctrl-D")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}
	return string(data), nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Parse command line options
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	level := cfg.LogLevel
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	if err := logger.Init(strings.ToLower(level)); err != nil {
		fmt.Fprintf(stderr, "Error initializing logger: %v\n", err)
		return 1
	}
	logger.SetFile(cfg.LogFile)

	// Set up output
	out := printer.New(stdout)
	errOut := printer.New(stderr)

	// Validate app registration
	var registration *models.Credentials
	if opts.authorize {
		if err := opts.registration.Validate(); err != nil {
			errOut.Error(err)
			return 1
		}
		registration = opts.registration.Credentials()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Initialize authorization
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	manager := auth.NewManager(
		auth.NewFileStore(cfg.SessionFile),
		&auth.BrowserCodeFlow{Addr: cfg.RedirectAddr, Timeout: cfg.AuthTimeout},
		registration,
		auth.WithEndpoint(auth.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL}),
		auth.WithHTTPClient(httpClient),
	)
	if opts.authorize {
		if _, err := manager.Authenticate(ctx); err != nil {
			logger.Error("Authorization failed", err)
			errOut.Error(err)
			return 1
		}
	}

	// Create OneNote session
	client := onenote.NewClient(manager,
		onenote.WithBaseURL(cfg.APIURL),
		onenote.WithHTTPClient(httpClient),
	)
	session := onenote.NewSession(client, hierarchy.NewStore(cfg.CacheFile))

	if !opts.needsHierarchy() {
		return 0
	}
	// Load or refresh hierarchy
	if err := session.Hierarchy(ctx, opts.update); err != nil {
		logger.Error("Failed to load hierarchy", err)
		errOut.Error(err)
		return 1
	}

	// Print listings
	listing := printer.ListOptions{Long: opts.long, ByTime: opts.byTime}
	if opts.pages {
		out.List(session.Store, models.KindPage, listing)
	}
	if opts.sections {
		out.List(session.Store, models.KindSection, listing)
	}
	if opts.notebooks {
		out.List(session.Store, models.KindNotebook, listing)
	}

	// Print page content
	code := 0
	if opts.content != "" {
		format := onenote.FormatMarkdown
		if opts.html {
			format = onenote.FormatHTML
		}
		text, err := session.PageContent(ctx, opts.content, format)
		switch {
		case errors.Is(err, onenote.ErrNotFound):
			errOut.NotFound(models.KindPage, opts.content)
			code = 1
		case err != nil:
			errOut.Error(err)
			code = 1
		default:
			fmt.Fprintln(stdout, text)
		}
	}

	// Print tree
	if opts.tree {
		out.Tree(session.Store)
	}

	// Create page
	if opts.create != "" {
		if c := createPage(ctx, session, opts, stdin, out, errOut, stderr); c != 0 {
			code = c
		}
	}
	return code
}

func createPage(ctx context.Context, session *onenote.Session, opts *options, stdin io.Reader, out, errOut *printer.Printer, stderr io.Writer) int {
	if opts.inSection == "" {
		errOut.Error(errors.New("you should give a section name to create page in (--in-section=<sec_name>)"))
		return 1
	}

	body, err := readBody(opts.files, stdin, stderr)
	if err != nil {
		errOut.Error(err)
		return 1
	}
	content, err := markup.New().ToHTML(body)
	if err != nil {
		errOut.Error(err)
		return 1
	}

	status, err := session.CreatePage(ctx, opts.create, opts.inSection, content)
	switch {
	case errors.Is(err, onenote.ErrNotFound):
		errOut.NotFound(models.KindSection, opts.inSection)
		return 1
	case err != nil:
		errOut.Error(err)
		return 1
	}
	if !out.CreateResult(opts.create, opts.inSection, status) {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
