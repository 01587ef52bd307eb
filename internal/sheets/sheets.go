// Package sheets loads recipes from public Google Sheets documents.
//
// A document is fetched one tab at a time through the CSV export endpoint,
// which needs no API key for link-shared sheets. Each tab compiles to one
// recipe; tabs that yield no steps are dropped.
package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/doughlab/DoughPilot/internal/recipe"
)

// DefaultTabGID is the gid of the first tab in a spreadsheet.
const DefaultTabGID = "0"

// fetchTimeout bounds a single CSV export request.
const fetchTimeout = 30 * time.Second

var spreadsheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)

// ExtractSpreadsheetID pulls the document ID out of a Google Sheets URL.
func ExtractSpreadsheetID(url string) (string, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("no spreadsheet ID found in URL %q", url)
	}
	return m[1], nil
}

// Tab identifies one sheet within a spreadsheet document.
type Tab struct {
	GID  string
	Name string
}

// ParseTabs parses a comma-separated "gid:name" list, e.g.
// "0:Recipe,123456:Focaccia". A bare name with no colon gets the default
// gid, which is only useful for single-tab configurations.
func ParseTabs(raw string) ([]Tab, error) {
	var tabs []Tab
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		gid, name, found := strings.Cut(part, ":")
		if !found {
			tabs = append(tabs, Tab{GID: DefaultTabGID, Name: part})
			continue
		}
		gid = strings.TrimSpace(gid)
		name = strings.TrimSpace(name)
		if gid == "" || name == "" {
			return nil, fmt.Errorf("invalid tab entry %q, want gid:name", part)
		}
		tabs = append(tabs, Tab{GID: gid, Name: name})
	}
	if len(tabs) == 0 {
		return nil, fmt.Errorf("no tabs configured")
	}
	return tabs, nil
}

// Opts holds configuration options for the loader.
type Opts struct {
	Client *http.Client
	Tabs   []Tab
}

// Option defines a configuration option for the loader.
type Option func(*Opts)

// WithHTTPClient overrides the HTTP client used for export requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.Client = c }
}

// WithTabs sets the tabs fetched from each document.
func WithTabs(tabs []Tab) Option {
	return func(o *Opts) { o.Tabs = tabs }
}

// Loader fetches spreadsheet tabs and compiles them into recipes.
type Loader struct {
	client *http.Client
	tabs   []Tab
}

// NewLoader creates a loader. Without WithTabs it reads only the first tab,
// named "Recipe".
func NewLoader(opts ...Option) *Loader {
	cfg := Opts{
		Client: &http.Client{Timeout: fetchTimeout},
		Tabs:   []Tab{{GID: DefaultTabGID, Name: "Recipe"}},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{client: cfg.Client, tabs: cfg.Tabs}
}

// Load fetches every configured tab of the document at url and returns the
// recipes that compiled to at least one step. A tab that fails to fetch
// fails the whole load; partial recipe lists would silently hide errors.
func (l *Loader) Load(ctx context.Context, url string) ([]recipe.Recipe, error) {
	id, err := ExtractSpreadsheetID(url)
	if err != nil {
		return nil, err
	}

	var recipes []recipe.Recipe
	for _, tab := range l.tabs {
		rows, err := l.fetchTab(ctx, id, tab.GID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tab %q: %w", tab.Name, err)
		}
		r := recipe.Compile(rows, tab.Name)
		if r.IsEmpty() {
			slog.Debug("Skipping tab with no steps", "tab", tab.Name, "rows", len(rows))
			continue
		}
		recipes = append(recipes, r)
		slog.Info("Loaded recipe from sheet", "tab", tab.Name, "steps", len(r.Steps))
	}
	return recipes, nil
}

// fetchTab downloads one tab as CSV and parses it into rows. Rows may have
// uneven field counts; the compiler tolerates short rows.
func (l *Loader) fetchTab(ctx context.Context, spreadsheetID, gid string) ([][]string, error) {
	exportURL := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", spreadsheetID, gid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build export request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("export returned status %d (is the sheet link-shared?)", resp.StatusCode)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}
