package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/pyq-crawler/internal/cleanup"
	"github.com/JakeFAU/pyq-crawler/internal/crawler"
	"github.com/JakeFAU/pyq-crawler/internal/dedup"
	"github.com/JakeFAU/pyq-crawler/internal/runs"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: align})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

type counter struct {
	name  string
	value int
}

func counterTable(counters []counter) string {
	rows := make([][]string, 0, len(counters))
	for _, c := range counters {
		rows = append(rows, []string{c.name, strconv.Itoa(c.value)})
	}
	return renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func crawlTable(r crawler.CrawlResult) string {
	return counterTable([]counter{
		{"Pages visited", r.PagesVisited},
		{"Pages failed", r.PagesFailed},
		{"Documents seen", r.DocumentsSeen},
		{"Documents processed", r.DocumentsProcessed},
		{"Documents discarded", r.DocumentsDiscarded},
		{"Documents failed", r.DocumentsFailed},
		{"Questions segmented", r.QuestionsSegmented},
		{"Records inserted", r.RecordsInserted},
		{"Records failed", r.RecordsFailed},
	})
}

func dedupTable(s dedup.Stats) string {
	return counterTable([]counter{
		{"Duplicate groups", s.Groups},
		{"Duplicates", s.Duplicates},
		{"Deleted", s.Deleted},
		{"Errors", s.Errors},
	})
}

func cleanupTable(s cleanup.Stats) string {
	counters := []counter{
		{"Processed", s.Processed},
		{"Updated", s.Updated},
		{"Invalid", s.Invalid},
		{"Deleted", s.Deleted},
		{"Exact duplicates", s.Duplicates},
		{"Errors", s.Errors},
	}
	for _, name := range slices.Sorted(maps.Keys(s.Fixes)) {
		counters = append(counters, counter{"Fix: " + name, s.Fixes[name]})
	}
	return counterTable(counters)
}

// writeReport prints the finished run either as indented JSON or as a
// heading line followed by the rendered table.
func writeReport(w io.Writer, asJSON bool, report runs.Report, summary, tableText string) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	if _, err := fmt.Fprintf(w, "run %s (%s, %s)\n%s\n", report.ID, report.Kind, report.Status, summary); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, tableText)
	return err
}
