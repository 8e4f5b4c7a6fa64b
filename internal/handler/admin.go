package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/activity"
	"github.com/matthewbaird/jigtrack/internal/event"
	"github.com/matthewbaird/jigtrack/internal/jig"
	"github.com/matthewbaird/jigtrack/internal/logger"
	"github.com/matthewbaird/jigtrack/internal/settings"
	"github.com/matthewbaird/jigtrack/internal/style"
)

func settingsView(t style.Thresholds) settingsData {
	return settingsData{
		CriticalColor:       t.CriticalColor,
		WarningColor:        t.WarningColor,
		CalibrationLeadDays: t.CalibrationLeadDays,
		UsageCritical:       t.Usage.Critical,
		UsageWarning:        t.Usage.Warning,
		CycleCritical:       t.Cycle.Critical,
		CycleWarning:        t.Cycle.Warning,
	}
}

func (a *App) settingsPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "settings", settingsView(a.cfg.Settings.Current()))
}

// saveSettings applies new thresholds immediately; the list is restyled on
// its next render.
func (a *App) saveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	user := operatorFrom(r.Context()).Name

	var bad []string
	num := func(name string) int {
		n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(name)))
		if err != nil {
			bad = append(bad, name)
		}
		return n
	}
	t := style.Thresholds{
		CriticalColor:       strings.TrimSpace(r.PostFormValue("critical_color")),
		WarningColor:        strings.TrimSpace(r.PostFormValue("warning_color")),
		CalibrationLeadDays: num("lead_days"),
		Usage:               style.Cutoffs{Critical: num("usage_critical"), Warning: num("usage_warning")},
		Cycle:               style.Cutoffs{Critical: num("cycle_critical"), Warning: num("cycle_warning")},
	}
	if len(bad) > 0 {
		data := settingsView(t)
		data.Error = "not a whole number: " + strings.Join(bad, ", ")
		a.render(w, r, http.StatusUnprocessableEntity, "settings", data)
		return
	}
	if err := a.cfg.Settings.Update(t); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			data := settingsView(t)
			data.Error = err.Error()
			a.render(w, r, http.StatusUnprocessableEntity, "settings", data)
			return
		}
		a.fail(w, r, "settings_update", err)
		return
	}
	logger.WithUser(a.log, user).Info("thresholds applied", zap.String("op", "settings_update"))
	a.record(r.Context(), user, event.NewSettingsChanged(user, event.SettingsChangedPayload{
		CriticalColor:       t.CriticalColor,
		WarningColor:        t.WarningColor,
		CalibrationLeadDays: t.CalibrationLeadDays,
		UsageCritical:       t.Usage.Critical,
		UsageWarning:        t.Usage.Warning,
		CycleCritical:       t.Cycle.Critical,
		CycleWarning:        t.Cycle.Warning,
	}))
	http.Redirect(w, r, noticeURL("/settings", "Settings saved."), http.StatusSeeOther)
}

func (a *App) domainPage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	values, err := a.cfg.Domains.List(r.Context(), name)
	if err != nil {
		a.fail(w, r, "list_domain", err)
		return
	}
	a.render(w, r, http.StatusOK, "domains", domainData{Name: name, Values: strings.Join(values, "\n")})
}

// saveDomain replaces a domain with one value per line, in order.
func (a *App) saveDomain(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw := r.PostFormValue("values")
	changed, err := a.cfg.Domains.Replace(r.Context(), operatorFrom(r.Context()).Name, name, splitLines(raw))
	a.domainSaved(w, r, name, raw, changed, err)
}

func (a *App) resetDomain(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	changed, err := a.cfg.Domains.Reset(r.Context(), operatorFrom(r.Context()).Name, name)
	a.domainSaved(w, r, name, "", changed, err)
}

func (a *App) domainSaved(w http.ResponseWriter, r *http.Request, name, raw string, changed bool, err error) {
	switch {
	case errors.Is(err, jig.ErrInvalidDomain):
		a.render(w, r, http.StatusUnprocessableEntity, "domains", domainData{Name: name, Values: raw, Error: err.Error()})
		return
	case err != nil:
		a.fail(w, r, "replace_domain", err)
		return
	}
	notice := "No change."
	if changed {
		notice = "Saved. Restart to apply the new values."
	}
	http.Redirect(w, r, noticeURL("/domains/"+name, notice), http.StatusSeeOther)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func (a *App) activityPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := activity.DefaultQueryOptions()
	opts.Category = q.Get("category")
	if raw := q.Get("jig"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid jig id: "+raw)
			return
		}
		opts.JigID = id
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			opts.Limit = n
		}
	}
	entries, err := a.cfg.Activity.Recent(r.Context(), opts)
	if err != nil {
		a.fail(w, r, "activity", err)
		return
	}
	data := activityData{Category: opts.Category, JigID: q.Get("jig")}
	for _, e := range entries {
		data.Entries = append(data.Entries, activityRow{
			When:     e.OccurredAt.Local().Format(time.DateTime),
			User:     e.User,
			JigID:    e.JigID,
			Summary:  e.Summary,
			Category: e.Category,
			Weight:   e.Weight,
		})
	}
	a.render(w, r, http.StatusOK, "activity", data)
}
