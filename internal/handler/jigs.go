package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/export"
	"github.com/matthewbaird/jigtrack/internal/form"
	"github.com/matthewbaird/jigtrack/internal/jig"
	"github.com/matthewbaird/jigtrack/internal/logger"
	"github.com/matthewbaird/jigtrack/internal/query"
	"github.com/matthewbaird/jigtrack/internal/schema"
	"github.com/matthewbaird/jigtrack/internal/style"
	"github.com/matthewbaird/jigtrack/internal/table"
)

// applyView updates the coordinator from the list query parameters. Only
// parameters present in the request change the view, so redirects back to
// the list keep the operator's filter and sort. Bad operator input is
// returned as invalid; a failed reload as err.
func (a *App) applyView(r *http.Request) (invalid, err error) {
	ctx := r.Context()
	v := a.cfg.View
	q := r.URL.Query()

	if q.Has("filter") {
		parsed, perr := query.Parse(a.cfg.Schema, q.Get("filter"))
		if perr != nil {
			return perr, v.Refresh(ctx)
		}
		if err := v.SetCriteria(ctx, parsed.Criteria); err != nil {
			return nil, err
		}
		a.filter = q.Get("filter")
		if parsed.Sort != "" {
			if err := v.SortBy(parsed.Sort, parsed.Desc); err != nil {
				return err, nil
			}
		}
	} else if err := v.Refresh(ctx); err != nil {
		return nil, err
	}
	if q.Has("sort") {
		if err := v.SortBy(q.Get("sort"), q.Get("desc") == "1"); err != nil {
			return err, nil
		}
	}
	if q.Has("q") {
		v.SetSearch(q.Get("q"))
	}
	if raw := q.Get("select"); raw != "" {
		if key, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if d, ok := v.DisplayOf(key); ok {
				_ = v.Select(d)
			}
		}
	}
	return nil, nil
}

func (a *App) list(w http.ResponseWriter, r *http.Request) {
	invalid, err := a.applyView(r)
	if err != nil {
		a.fail(w, r, "list", err)
		return
	}
	status := http.StatusOK
	var filterErr string
	if invalid != nil {
		status = http.StatusUnprocessableEntity
		filterErr = invalid.Error()
	}
	a.render(w, r, status, "list", a.listData(filterErr))
}

func (a *App) listData(filterErr string) listData {
	v := a.cfg.View
	t := a.cfg.Settings.Current()
	now := a.now()
	sortCol, desc := v.Sort()
	data := listData{
		Headers:     v.Headers(),
		Titles:      v.Titles(),
		Search:      v.Search(),
		Filter:      a.filter,
		FilterError: filterErr,
		Sort:        sortCol,
		Desc:        desc,
	}
	pk, _ := a.cfg.Schema.PrimaryKey()
	for d, rec := range v.Rows() {
		row := rowView{Selected: d == v.Selected(), Status: schema.Display(rec["UseStatus"])}
		row.Key, _ = rec[pk.Name].(int64)
		for _, h := range data.Headers {
			text, state := v.Cell(d, h, t, now)
			row.Cells = append(row.Cells, cellView{Text: text, Color: t.Color(state)})
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

// jigJSON is one row of the JSON listing.
type jigJSON struct {
	Values map[string]any    `json:"values"`
	States map[string]string `json:"states,omitempty"`
}

func (a *App) listJSON(w http.ResponseWriter, r *http.Request) {
	invalid, err := a.applyView(r)
	if err != nil {
		status, code := errorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	if invalid != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_FILTER", invalid.Error())
		return
	}
	v := a.cfg.View
	t := a.cfg.Settings.Current()
	now := a.now()
	out := make([]jigJSON, 0, v.Len())
	for d, rec := range v.Rows() {
		row := jigJSON{Values: map[string]any{}}
		for _, h := range v.Headers() {
			row.Values[h] = schema.StorageValue(rec[h])
			if _, state := v.Cell(d, h, t, now); state != style.Normal {
				if row.States == nil {
					row.States = map[string]string{}
				}
				row.States[h] = state.String()
			}
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) buildForm() *form.Form {
	return form.Build(a.cfg.Schema, form.WithClock(a.now), form.WithLogger(a.log))
}

func (a *App) newForm(w http.ResponseWriter, r *http.Request) {
	f := a.buildForm()
	a.render(w, r, http.StatusOK, "form", formData{Heading: "Add jig", Action: "/jigs", Controls: controlViews(f)})
}

func (a *App) editForm(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(w, r, "id")
	if !ok {
		return
	}
	rec, err := a.cfg.Rows.Get(r.Context(), key)
	if err != nil {
		a.fail(w, r, "edit", err)
		return
	}
	f := a.buildForm()
	if err := f.Populate(rec); err != nil {
		a.log.Warn("jig shown with unloadable values", zap.Int64("jig_id", key), zap.Error(err))
	}
	a.render(w, r, http.StatusOK, "form", formData{
		Heading:  fmt.Sprintf("Edit jig %d", key),
		Action:   fmt.Sprintf("/jigs/%d", key),
		Controls: controlViews(f),
	})
}

func formInput(r *http.Request) map[string]string {
	in := map[string]string{}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			in[k] = vs[0]
		}
	}
	return in
}

func (a *App) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	f := a.buildForm()
	f.Apply(formInput(r))
	a.save(w, r, f, form.CreateMode(), formData{Heading: "Add jig", Action: "/jigs"})
}

func (a *App) update(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(w, r, "id")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error())
		return
	}
	ctx := r.Context()
	rec, err := a.cfg.Rows.Get(ctx, key)
	if err != nil {
		a.fail(w, r, "update", err)
		return
	}
	display, visible := a.cfg.View.DisplayOf(key)
	if !visible {
		a.fail(w, r, "update", fmt.Errorf("jig %d: %w", key, table.ErrNotVisible))
		return
	}
	f := a.buildForm()
	if err := f.Populate(rec); err != nil {
		a.log.Warn("jig edited with unloadable values", zap.Int64("jig_id", key), zap.Error(err))
	}
	f.Apply(formInput(r))
	a.save(w, r, f, form.EditMode(display), formData{
		Heading: fmt.Sprintf("Edit jig %d", key),
		Action:  fmt.Sprintf("/jigs/%d", key),
	})
}

// save validates the form and submits it. Validation errors re-render the
// form with its indicators shown; the form stays open.
func (a *App) save(w http.ResponseWriter, r *http.Request, f *form.Form, mode form.Mode, data formData) {
	ctx := r.Context()
	op := operatorFrom(ctx)

	rec, fieldErrs := f.Validate(f.Collect())
	if fieldErrs != nil {
		logger.WithUser(a.log, op.Name).Info("form rejected", zap.String("op", "save"), zap.Error(fieldErrs))
		data.Controls = controlViews(f)
		a.render(w, r, http.StatusUnprocessableEntity, "form", data)
		return
	}
	key, err := a.cfg.Jigs.Save(ctx, op.Name, a.cfg.Schema, rec, mode, a.cfg.View)
	if err != nil {
		a.fail(w, r, "save", err)
		return
	}

	var notice string
	if mode.IsEdit() {
		_, err = a.cfg.View.SelectAfterUpdate(ctx, key)
	} else {
		_, err = a.cfg.View.SelectAfterInsert(ctx, key)
	}
	switch {
	case errors.Is(err, table.ErrNotVisible):
		notice = fmt.Sprintf("Jig %d was saved but is hidden by the current filter.", key)
	case err != nil:
		a.fail(w, r, "save", err)
		return
	default:
		notice = fmt.Sprintf("Jig %d saved.", key)
	}
	http.Redirect(w, r, listURL(key, notice), http.StatusSeeOther)
}

func listURL(key int64, notice string) string {
	q := url.Values{}
	if key != 0 {
		q.Set("select", strconv.FormatInt(key, 10))
	}
	if notice != "" {
		q.Set("notice", notice)
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

func (a *App) checkout(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, "checkout", a.cfg.Jigs.Checkout)
}

func (a *App) giveBack(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, "return", a.cfg.Jigs.Return)
}

// transition runs a status change. A rejected transition is informational:
// nothing changes and the list shows a notice.
func (a *App) transition(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, user string, key int64) (schema.Record, error)) {
	key, ok := parseKey(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	rec, err := fn(ctx, operatorFrom(ctx).Name, key)
	switch {
	case errors.Is(err, jig.ErrStateConflict):
		http.Redirect(w, r, listURL(key, err.Error()), http.StatusSeeOther)
		return
	case err != nil:
		a.fail(w, r, op, err)
		return
	}
	notice := fmt.Sprintf("Jig %d is now %s.", key, schema.Display(rec["UseStatus"]))
	http.Redirect(w, r, listURL(key, notice), http.StatusSeeOther)
}

func (a *App) delete(w http.ResponseWriter, r *http.Request) {
	key, ok := parseKey(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	if err := a.cfg.Jigs.Delete(ctx, operatorFrom(ctx).Name, key); err != nil {
		a.fail(w, r, "delete", err)
		return
	}
	http.Redirect(w, r, listURL(0, fmt.Sprintf("Jig %d deleted.", key)), http.StatusSeeOther)
}

// export writes the rows currently shown, filter and sort applied.
func (a *App) export(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	log := logger.WithUser(a.log, operatorFrom(r.Context()).Name).With(zap.String("op", "export"), zap.String("format", format))

	var err error
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="jigs.csv"`)
		err = export.CSV(w, a.cfg.View)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="jigs.xlsx"`)
		err = export.XLSX(w, a.cfg.View, a.cfg.Settings.Current(), a.now())
	default:
		writeError(w, http.StatusNotFound, "UNKNOWN_FORMAT", "unknown export format: "+format)
		return
	}
	if err != nil {
		log.Error("export failed", zap.Error(err))
		return
	}
	log.Info("view exported", zap.Int("rows", a.cfg.View.Len()))
}
