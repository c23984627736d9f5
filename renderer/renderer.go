// Package renderer turns ledger views into markdown reports.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"github.com/etnz/costbasis"
	"github.com/etnz/costbasis/date"
)

//go:embed templates/*.md
var templatesFS embed.FS

var templates, _ = fs.Sub(templatesFS, "templates")

// Positions is the list of open positions of a holder.
type Positions struct {
	Holder    string
	AsOf      date.Date
	Positions []costbasis.PositionSummary

	// Totals over all positions.
	MarketValue  costbasis.Money
	UnrealizedPL costbasis.Money
	RealizedPL   costbasis.Money
}

// NewPositions rounds the summaries and computes the totals.
func NewPositions(holder string, asOf date.Date, summaries []costbasis.PositionSummary) *Positions {
	p := &Positions{Holder: holder, AsOf: asOf}
	for _, s := range summaries {
		p.MarketValue = p.MarketValue.Add(s.MarketValue)
		p.UnrealizedPL = p.UnrealizedPL.Add(s.UnrealizedPL)
		p.RealizedPL = p.RealizedPL.Add(s.RealizedPL)
		p.Positions = append(p.Positions, s.Rounded())
	}
	return p
}

// RenderPositions renders the positions table.
func RenderPositions(p *Positions) string {
	partials := map[string]string{
		"positions_title": "positions_title.md",
		"positions_table": "positions_table.md",
	}
	return renderTemplate("positions", "positions.md", partials, p)
}

// RenderPosition renders the detail of a single position.
func RenderPosition(s costbasis.PositionSummary) string {
	return renderTemplate("position", "position.md", nil, s.Rounded())
}

// Lots is the lot list of a key.
type Lots struct {
	Key  costbasis.Key
	AsOf date.Date
	Lots []Lot
}

// Lot is a lot row, its status depends on the report date.
type Lot struct {
	costbasis.CostLot
	asOf date.Date
}

// ShortID returns the first block of the lot id.
func (l Lot) ShortID() string { return shortID(l.ID) }

// Status is "sold", "sellable" or "unsettled".
func (l Lot) Status() string {
	switch {
	case !l.Open():
		return "sold"
	case l.Sellable(l.asOf):
		return "sellable"
	}
	return "unsettled"
}

// NewLots wraps lots for rendering as of asOf.
func NewLots(key costbasis.Key, asOf date.Date, lots []costbasis.CostLot) *Lots {
	v := &Lots{Key: key, AsOf: asOf}
	for _, lot := range lots {
		v.Lots = append(v.Lots, Lot{CostLot: lot, asOf: asOf})
	}
	return v
}

// RenderLots renders the lot table of a key.
func RenderLots(l *Lots) string {
	return renderTemplate("lots", "lots.md", nil, l)
}

// Match is a row of the lots consumed by a sell.
type Match struct{ costbasis.SellMatch }

// ShortID returns the first block of the lot id.
func (m Match) ShortID() string { return shortID(m.LotID) }

type sellView struct {
	costbasis.SellResult
	Matches []Match
}

// RenderSell renders the outcome of a sell.
func RenderSell(res costbasis.SellResult) string {
	v := sellView{SellResult: res}
	for _, m := range res.Matches {
		v.Matches = append(v.Matches, Match{m})
	}
	partials := map[string]string{
		"sell_matches": "sell_matches.md",
	}
	return renderTemplate("sell", "sell.md", partials, v)
}

// RenderAdjustments renders the adjustments of a corporate action.
func RenderAdjustments(adjs []costbasis.Adjustment) string {
	return renderTemplate("adjustments", "adjustments.md", nil, adjs)
}

// History is the recorded operations of a key.
type History struct {
	Key         costbasis.Key
	Rows        []HistoryRow
	Adjustments []costbasis.Adjustment
}

// HistoryRow is one recorded operation.
type HistoryRow struct {
	ID          int64
	Kind        string
	Date        string
	Description string
	Notes       string
	RecordedAt  time.Time
}

// Recorded formats the recording time in UTC.
func (r HistoryRow) Recorded() string { return r.RecordedAt.UTC().Format("2006-01-02 15:04") }

// RenderHistory renders the operations and adjustments of a key.
func RenderHistory(h *History) string {
	partials := map[string]string{
		"adjustments": "adjustments.md",
	}
	return renderTemplate("history", "history.md", partials, h)
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
