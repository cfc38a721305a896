package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/minecraft"
)

// RenderTable writes rows as a bordered table.
func RenderTable(w io.Writer, header []string, rows [][]string) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(rows)
	tw.Render()
}

// RenderSummary writes a summary in query order.
func RenderSummary(w io.Writer, queries []client.Query, summary client.Summary) {
	rows := make([][]string, 0, len(queries))
	for _, q := range queries {
		rows = append(rows, []string{q.Field, minecraft.StripFormatting(summary[q.Field])})
	}
	RenderTable(w, []string{"Field", "Value"}, rows)
}
