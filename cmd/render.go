package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dynleaderboards/dynleaderboards/sim"
	"github.com/dynleaderboards/dynleaderboards/sim/engine"
	"github.com/dynleaderboards/dynleaderboards/sim/leaderboard"
	"github.com/dynleaderboards/dynleaderboards/sim/trace"
)

// printViews renders the named views, or all of them when names is empty.
func printViews(w io.Writer, e *engine.Engine, names []string) {
	views := e.Views().Views()
	if len(names) > 0 {
		views = views[:0:0]
		for _, name := range names {
			if v := e.Views().View(name); v != nil {
				views = append(views, v)
			} else {
				_, _ = fmt.Fprintf(w, "unknown leaderboard %q\n", name)
			}
		}
	}
	for _, v := range views {
		renderView(w, v, e.Field().Session())
	}
}

// renderView writes one view as a table. Empty slots are skipped and the focused
// car is marked.
func renderView(w io.Writer, v *leaderboard.View, session *sim.Session) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("%s: %s", v.Name(), v.Kind().DisplayName()))
	t.AppendHeader(table.Row{"", "Pos", "#", "Driver", "Class", "Gap", "Ahead", "Best", "Last", "Start"})

	focusedIdx, hasFocused := v.FocusedIndex()
	for i, c := range v.Cars() {
		if c == nil {
			continue
		}
		marker := ""
		if hasFocused && i == focusedIdx {
			marker = ">"
		}
		d := v.Dynamic(i)
		driver := ""
		if cd := c.CurrentDriver(); cd != nil {
			driver = cd.InitialPlusLastName
		}
		t.AppendRow(table.Row{
			marker,
			formatInt(d.Position),
			c.CarNumber,
			driver,
			c.Class,
			formatGap(d.GapToFocused),
			formatGap(d.GapToAhead),
			formatDelta(d.BestLapDeltaToFocusedBest),
			formatLapTime(c.LastLap),
			formatInt(d.PositionStart),
		})
	}
	if session != nil {
		t.AppendFooter(table.Row{"", "", "", string(session.Type), session.Phase.String()})
	}
	t.Render()
}

// printTraceSummary writes the anomaly trace summary.
func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Anomaly trace")
	t.AppendHeader(table.Row{"Kind", "Transitions"})
	kinds := make([]string, 0, len(s.KindDistribution))
	for k := range s.KindDistribution {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		t.AppendRow(table.Row{k, s.KindDistribution[trace.AnomalyKind(k)]})
	}
	t.AppendFooter(table.Row{"evictions", s.TotalEvictions})
	if s.MostAffectedCar != "" {
		t.AppendFooter(table.Row{"most affected", s.MostAffectedCar})
	}
	t.Render()
}

func formatInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

// formatGap shows lap-encoded gaps as a lap count.
func formatGap(g *time.Duration) string {
	if g == nil {
		return "-"
	}
	if laps, ok := sim.DecodeLapGap(*g, sim.DefaultHalfLapGapThreshold); ok {
		return fmt.Sprintf("%+dL", laps)
	}
	return fmt.Sprintf("%+.1f", g.Seconds())
}

func formatDelta(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%+.3f", d.Seconds())
}

func formatLapTime(l *sim.Lap) string {
	if l == nil {
		return "-"
	}
	m := int(l.Time / time.Minute)
	s := (l.Time % time.Minute).Seconds()
	return fmt.Sprintf("%d:%06.3f", m, s)
}
