package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/01011010/notesum-hybrid/internal/client/scheduler"
	"github.com/01011010/notesum-hybrid/internal/common"
	"github.com/01011010/notesum-hybrid/internal/models"
	"github.com/01011010/notesum-hybrid/internal/parser"
	"github.com/01011010/notesum-hybrid/internal/worker"
)

// maxEvaluations bounds how often one line is evaluated per edit, so
// variables defined in terms of each other cannot loop.
const maxEvaluations = 2

// openPage is the page being edited. Line numbers are 1-based.
type openPage struct {
	id      string
	name    string
	lines   []string
	results map[int]*parser.Result
}

func newOpenPage(p *models.Page) *openPage {
	var lines []string
	if p.Content != "" {
		lines = strings.Split(p.Content, "\n")
	}
	return &openPage{id: p.ID, name: p.Name, lines: lines, results: make(map[int]*parser.Result)}
}

func (p *openPage) content() string {
	return strings.Join(p.lines, "\n")
}

func formatResult(r *parser.Result) string {
	switch {
	case r == nil:
		return ""
	case !r.Success:
		return "! " + r.Error
	case r.Kind == parser.KindEvent && r.Event != nil:
		return fmt.Sprintf("event %q at %s", r.Event.Title, r.Event.Start.Format(time.DateTime))
	default:
		return r.Value
	}
}

func eventOf(r *parser.Result) *parser.Event {
	if r == nil || r.Kind != parser.KindEvent {
		return nil
	}
	return r.Event
}

func (a *App) printLine(p *openPage, n int) {
	text := p.lines[n-1]
	if res := formatResult(p.results[n]); res != "" {
		printlnFn(fmt.Sprintf("%3d | %-40s => %s", n, text, res))
		return
	}
	printlnFn(fmt.Sprintf("%3d | %s", n, text))
}

// evaluate submits queue to the parse worker, following the reprocess
// lists it returns, and reports the lines whose result was refreshed.
func (a *App) evaluate(ctx context.Context, p *openPage, queue ...int) ([]int, error) {
	seen := make(map[int]int)
	var touched []int
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if n < 1 || n > len(p.lines) || seen[n] >= maxEvaluations {
			continue
		}
		seen[n]++

		resp, err := a.worker.Submit(ctx, worker.Request{
			LineNumber: n,
			LineText:   p.lines[n-1],
			Timezone:   a.config.Timezone,
		})
		if err != nil {
			a.log.Error(ctx, "Line evaluation failed", "line", n, "error", err)
			return touched, fmt.Errorf("failed to evaluate line %d: %w", n, err)
		}
		if resp.Result != nil {
			p.results[n] = resp.Result
		} else {
			delete(p.results, n)
		}
		a.calendar.Set(p.id, n, eventOf(resp.Result))
		if !slices.Contains(touched, n) {
			touched = append(touched, n)
		}
		queue = append(queue, resp.Reprocess...)
	}
	slices.Sort(touched)
	return touched, nil
}

func (a *App) evaluateAll(ctx context.Context, p *openPage) error {
	if err := a.worker.Reset(ctx); err != nil {
		return err
	}
	clear(p.results)
	a.calendar.ClearPage(p.id)
	all := make([]int, len(p.lines))
	for i := range all {
		all[i] = i + 1
	}
	_, err := a.evaluate(ctx, p, all...)
	return err
}

// changed hands the new content to the sync scheduler.
func (a *App) changed(ctx context.Context, p *openPage) {
	res := a.smart.HandleContentChange(ctx, p.id, p.content())
	a.log.Debug(ctx, "Content changed", "page", p.id, "saved", res.SavedLocally, "sync", res.ScheduledForSync)
}

// resolvePage finds a page by exact id, case-insensitive name or unique id
// prefix.
func (a *App) resolvePage(ctx context.Context, ref string) (*models.Page, error) {
	list, err := a.notes.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	var byPrefix []models.Page
	for _, p := range list {
		if p.ID == ref || strings.EqualFold(p.Name, ref) {
			return &p, nil
		}
		if strings.HasPrefix(p.ID, ref) {
			byPrefix = append(byPrefix, p)
		}
	}
	if len(byPrefix) == 1 {
		return &byPrefix[0], nil
	}
	if len(byPrefix) > 1 {
		return nil, fmt.Errorf("%w: %q matches %d pages", common.ErrValidation, ref, len(byPrefix))
	}
	return nil, common.ErrNotFound
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (a *App) List(ctx context.Context) error {
	list, err := a.notes.ListPages(ctx)
	if err != nil {
		printlnFn("Failed to list pages:", err)
		return err
	}
	if len(list) == 0 {
		printlnFn("No pages yet. Create one with: new <name>")
		return nil
	}
	for _, p := range list {
		printlnFn(fmt.Sprintf("%s  %-24s %-8s %s", shortID(p.ID), p.Name, p.SyncStatus,
			p.LastModified.Local().Format(time.DateTime)))
	}
	return nil
}

func (a *App) New(ctx context.Context, name string) error {
	p, err := a.notes.CreatePage(ctx, name)
	if err != nil {
		printlnFn("Failed to create page:", err)
		return err
	}
	printlnFn("Created page", p.ID)
	return a.open(ctx, p)
}

func (a *App) Open(ctx context.Context, ref string) error {
	p, err := a.resolvePage(ctx, ref)
	if err != nil {
		printlnFn("Cannot open page:", err)
		return err
	}
	return a.open(ctx, p)
}

func (a *App) open(ctx context.Context, p *models.Page) error {
	a.closePage(ctx)

	op := newOpenPage(p)
	a.setCurrentPage(op)
	if err := a.evaluateAll(ctx, op); err != nil {
		printlnFn("Failed to evaluate page:", err)
		return err
	}
	return a.Show(ctx)
}

// closePage flushes the open page through the scheduler and restarts it
// for the next one.
func (a *App) closePage(ctx context.Context) {
	p := a.currentPage()
	if p == nil {
		return
	}
	if err := a.smart.PrepareClose(ctx, p.id, p.content()); err != nil {
		a.log.Warn(ctx, "Failed to flush page", "page", p.id, "error", err)
	}
	a.smart.Start()
	a.setCurrentPage(nil)
}

func (a *App) Show(ctx context.Context) error {
	p := a.currentPage()
	printlnFn(fmt.Sprintf("== %s (%d lines)", p.name, len(p.lines)))
	for n := range p.lines {
		a.printLine(p, n+1)
	}
	return nil
}

func (a *App) Append(ctx context.Context, text string) error {
	p := a.currentPage()
	p.lines = append(p.lines, text)
	a.changed(ctx, p)
	return a.reevaluate(ctx, p, len(p.lines))
}

func (a *App) Set(ctx context.Context, n int, text string) error {
	p := a.currentPage()
	if n > len(p.lines) {
		printlnFn(fmt.Sprintf("Line %d does not exist (page has %d lines)", n, len(p.lines)))
		return common.ErrValidation
	}
	p.lines[n-1] = text
	a.changed(ctx, p)
	return a.reevaluate(ctx, p, n)
}

func (a *App) Remove(ctx context.Context, n int) error {
	p := a.currentPage()
	if n > len(p.lines) {
		printlnFn(fmt.Sprintf("Line %d does not exist (page has %d lines)", n, len(p.lines)))
		return common.ErrValidation
	}

	dependents, err := a.worker.RemoveLine(ctx, n)
	if err != nil {
		return err
	}
	renumber := make(map[int]int)
	results := make(map[int]*parser.Result, len(p.results))
	for k, r := range p.results {
		switch {
		case k < n:
			results[k] = r
		case k > n:
			results[k-1] = r
		}
	}
	for k := 1; k <= len(p.lines); k++ {
		switch {
		case k < n:
			renumber[k] = k
		case k > n:
			renumber[k] = k - 1
		}
	}
	if err := a.worker.Renumber(ctx, renumber); err != nil {
		return err
	}
	a.calendar.Renumber(p.id, renumber)
	p.lines = slices.Delete(p.lines, n-1, n)
	p.results = results
	a.changed(ctx, p)

	var queue []int
	for _, d := range dependents {
		switch {
		case d < n:
			queue = append(queue, d)
		case d > n:
			queue = append(queue, d-1)
		}
	}
	return a.reevaluate(ctx, p, queue...)
}

func (a *App) reevaluate(ctx context.Context, p *openPage, lines ...int) error {
	touched, err := a.evaluate(ctx, p, lines...)
	if err != nil {
		printlnFn("Failed to evaluate:", err)
		return err
	}
	for _, n := range touched {
		a.printLine(p, n)
	}
	return nil
}

// Edit replaces the whole page body.
func (a *App) Edit(ctx context.Context) error {
	p := a.currentPage()
	text, err := GetMultiline(a.reader, "Enter the new page content", a.out)
	if err != nil {
		return err
	}
	p.lines = nil
	if text != "" {
		p.lines = strings.Split(text, "\n")
	}
	a.changed(ctx, p)
	if err := a.evaluateAll(ctx, p); err != nil {
		printlnFn("Failed to evaluate page:", err)
		return err
	}
	return a.Show(ctx)
}

func (a *App) Rename(ctx context.Context, name string) error {
	p := a.currentPage()
	if _, err := a.notes.RenamePage(ctx, p.id, name); err != nil {
		printlnFn("Failed to rename page:", err)
		return err
	}
	p.name = name
	printlnFn("Renamed to", name)
	return nil
}

// Move puts the referenced pages first, in the given order.
func (a *App) Move(ctx context.Context, refs []string) error {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		p, err := a.resolvePage(ctx, ref)
		if err != nil {
			printlnFn("Cannot find page:", ref, err)
			return err
		}
		ids = append(ids, p.ID)
	}
	if err := a.notes.ReorderPages(ctx, ids); err != nil {
		printlnFn("Failed to reorder pages:", err)
		return err
	}
	return a.List(ctx)
}

func (a *App) Delete(ctx context.Context, ref string) error {
	p, err := a.resolvePage(ctx, ref)
	if err != nil {
		printlnFn("Cannot delete page:", err)
		return err
	}
	ok, err := GetConfirmation(a.reader, fmt.Sprintf("Delete page %q?", p.Name), a.out)
	if err != nil || !ok {
		return err
	}

	if cur := a.currentPage(); cur != nil && cur.id == p.ID {
		a.setCurrentPage(nil)
		if err := a.worker.Reset(ctx); err != nil {
			return err
		}
	}

	a.calendar.ClearPage(p.ID)
	err = a.smart.HandlePageDeletion(ctx, p.ID)
	switch {
	case err == nil:
		printlnFn("Deleted", p.Name)
	case errors.Is(err, scheduler.ErrSyncFailed):
		printlnFn("Deleted", p.Name, "locally; the server will be updated on the next sync")
		return nil
	default:
		printlnFn("Failed to delete page:", err)
	}
	return err
}

func (a *App) Vars(ctx context.Context) error {
	vars, err := a.worker.Variables(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		printlnFn(fmt.Sprintf("%s = %g", name, vars[name]))
	}
	return nil
}

// Events prints the calendar of every page evaluated in this session,
// grouped by month.
func (a *App) Events(ctx context.Context) error {
	months := a.calendar.Months()
	if len(months) == 0 {
		printlnFn("No events.")
		return nil
	}
	for _, m := range months {
		printlnFn("==", m.Key)
		for _, ev := range m.Events {
			line := fmt.Sprintf("  %s  %-20s %s", ev.Start.Format("Mon 02 15:04"), ev.Title, ev.Status)
			if ev.IsRange {
				line += " until " + ev.End.Format(time.DateOnly)
			}
			if ev.Location != "" {
				line += " @ " + ev.Location
			}
			printlnFn(line)
		}
	}
	return nil
}
