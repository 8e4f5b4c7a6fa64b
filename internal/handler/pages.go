package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/form"
	"github.com/matthewbaird/jigtrack/internal/jig"
)

//go:embed templates/*.html
var templateFS embed.FS

// parsePages builds one template set per page, each pairing the shared
// layout with the page body.
func parsePages() (map[string]*template.Template, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := map[string]*template.Template{}
	for _, n := range names {
		base := strings.TrimSuffix(path.Base(n), ".html")
		if base == "layout" {
			continue
		}
		t, err := template.New(base).ParseFS(templateFS, "templates/layout.html", n)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", n, err)
		}
		pages[base] = t
	}
	return pages, nil
}

// page is the data every template receives.
type page struct {
	Title    string
	Operator jig.Operator
	Restart  bool
	Notice   string
	Domains  []string
	Data     any
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := a.pages[name]
	if !ok {
		a.log.Error("unknown page", zap.String("page", name))
		http.Error(w, "unknown page", http.StatusInternalServerError)
		return
	}
	p := page{
		Title:    pageTitle(name),
		Operator: operatorFrom(r.Context()),
		Notice:   r.URL.Query().Get("notice"),
		Data:     data,
	}
	if a.cfg.Domains != nil {
		p.Restart = a.cfg.Domains.RestartRequired()
		p.Domains = a.cfg.Domains.Names()
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		a.log.Error("rendering page failed", zap.String("page", name), zap.Error(err))
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func pageTitle(name string) string {
	switch name {
	case "list":
		return "Jigs"
	case "form":
		return "Jig"
	case "settings":
		return "Settings"
	case "domains":
		return "Domains"
	case "activity":
		return "Activity"
	case "login":
		return "Log in"
	default:
		return "Error"
	}
}

type loginData struct {
	Error      string
	GuestError string
}

type errorData struct {
	Title   string
	Code    string
	Message string
}

// cellView is one rendered table cell.
type cellView struct {
	Text  string
	Color string
}

type rowView struct {
	Key      int64
	Status   string
	Selected bool
	Cells    []cellView
}

type listData struct {
	Headers     []string
	Titles      []string
	Rows        []rowView
	Search      string
	Filter      string
	FilterError string
	Sort        string
	Desc        bool
}

// controlView flattens a form control for the template.
type controlView struct {
	Name     string
	Title    string
	Kind     string
	Text     string
	Checked  bool
	Choices  []string
	Min      string
	Max      string
	Optional bool
	Error    string
}

type formData struct {
	Heading  string
	Action   string
	Controls []controlView
}

func controlViews(f *form.Form) []controlView {
	out := make([]controlView, 0, len(f.Controls()))
	for _, c := range f.Controls() {
		v := controlView{
			Name:     c.Field.Name,
			Title:    c.Field.Label(),
			Kind:     c.Kind.String(),
			Text:     c.Text(),
			Checked:  c.Checked(),
			Choices:  c.Choices(),
			Optional: c.Field.Optional,
		}
		if c.Error.Visible {
			v.Error = c.Error.Message
		}
		lo, hi := c.Bounded()
		switch c.Kind {
		case form.KindIntStepper:
			from, to := c.IntRange()
			if lo {
				v.Min = strconv.FormatInt(from, 10)
			}
			if hi {
				v.Max = strconv.FormatInt(to, 10)
			}
		case form.KindFloatStepper:
			from, to := c.FloatRange()
			if lo {
				v.Min = strconv.FormatFloat(from, 'f', -1, 64)
			}
			if hi {
				v.Max = strconv.FormatFloat(to, 'f', -1, 64)
			}
		}
		out = append(out, v)
	}
	return out
}

type settingsData struct {
	CriticalColor       string
	WarningColor        string
	CalibrationLeadDays int
	UsageCritical       int
	UsageWarning        int
	CycleCritical       int
	CycleWarning        int
	Error               string
}

type domainData struct {
	Name   string
	Values string
	Error  string
}

type activityRow struct {
	When     string
	User     string
	JigID    int64
	Summary  string
	Category string
	Weight   string
}

type activityData struct {
	Category string
	JigID    string
	Entries  []activityRow
}
