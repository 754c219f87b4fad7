package stats

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Render formats the snapshot as the end-of-run statistics table. Rejection
// reasons are listed below the totals in descending count order.
func Render(s Snapshot, decorated bool) string {
	tw := table.NewWriter()
	if decorated {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
	}
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Artists processed", s.ArtistsProcessed},
		{"Artists accepted", s.ArtistsAccepted},
		{"Artists rejected", s.ArtistsRejected},
	})
	for _, reason := range sortedReasons(s.RejectedByReason) {
		tw.AppendRow(table.Row{"  " + reason, s.RejectedByReason[reason]})
	}
	if len(s.AcceptedByCountry) > 0 {
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"Accepted by country", ""})
		for _, row := range countryRows(s.AcceptedByCountry, s.ArtistsAccepted) {
			tw.AppendRow(row)
		}
	}
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"Tracks downloaded", s.TracksSucceeded},
		{"Tracks skipped", s.TracksSkipped},
		{"Tracks failed", s.TracksFailed},
		{"Data", humanize.IBytes(uint64(max(s.Bytes, 0)))},
		{"Elapsed", FormatElapsed(s.Elapsed)},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

// FormatElapsed renders durations at one-second precision ("1h2m3s").
func FormatElapsed(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	return d.Round(time.Second).String()
}

// Line is a one-line summary for logs and non-interactive output.
func Line(s Snapshot) string {
	return fmt.Sprintf("artists %d (accepted %d, rejected %d), tracks %d ok / %d skipped / %d failed, %s in %s",
		s.ArtistsProcessed, s.ArtistsAccepted, s.ArtistsRejected,
		s.TracksSucceeded, s.TracksSkipped, s.TracksFailed,
		humanize.IBytes(uint64(max(s.Bytes, 0))), FormatElapsed(s.Elapsed))
}

// maxCountryRows limits the country breakdown; the remainder is folded
// into one "other" row.
const maxCountryRows = 8

func countryRows(m map[string]int64, accepted int64) []table.Row {
	keys := sortedReasons(m)
	var rows []table.Row
	var other int64
	for i, code := range keys {
		if i >= maxCountryRows {
			other += m[code]
			continue
		}
		rows = append(rows, table.Row{"  " + code, countryShare(m[code], accepted)})
	}
	if other > 0 {
		rows = append(rows, table.Row{"  other", countryShare(other, accepted)})
	}
	return rows
}

func countryShare(n, accepted int64) string {
	if accepted <= 0 {
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("%d (%.0f%%)", n, float64(n)*100/float64(accepted))
}

func sortedReasons(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(m[b], m[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys
}
