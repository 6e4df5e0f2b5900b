package document

import (
	"sort"
	"strings"
)

// ExportMarkdown renders the document's text and table content as markdown,
// in page order. It is a deliberately plain export used when re-serializing
// an enhanced conversion result; layout beyond reading order is not
// reconstructed.
func (d *Document) ExportMarkdown() string {
	var sb strings.Builder

	for _, pageNo := range d.PageNumbers() {
		for _, t := range d.Texts {
			if prov, ok := FirstProv(t); ok && prov.PageNo == pageNo && strings.TrimSpace(t.Text) != "" {
				sb.WriteString(t.Text)
				sb.WriteString("\n\n")
			}
		}
		for _, tbl := range d.Tables {
			if prov, ok := FirstProv(tbl); ok && prov.PageNo == pageNo {
				writeMarkdownTable(&sb, tbl)
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeMarkdownTable(sb *strings.Builder, tbl *TableItem) {
	rows := map[int]map[int]string{}
	maxRow, maxCol := -1, -1
	for _, c := range tbl.Data.TableCells {
		if rows[c.StartRow] == nil {
			rows[c.StartRow] = map[int]string{}
		}
		rows[c.StartRow][c.StartCol] = sanitizeCell(c.Text)
		if c.StartRow > maxRow {
			maxRow = c.StartRow
		}
		if c.StartCol > maxCol {
			maxCol = c.StartCol
		}
	}
	if maxRow < 0 || maxCol < 0 {
		return
	}

	rowNums := make([]int, 0, len(rows))
	for r := range rows {
		rowNums = append(rowNums, r)
	}
	sort.Ints(rowNums)

	for i, r := range rowNums {
		sb.WriteString("|")
		for c := 0; c <= maxCol; c++ {
			sb.WriteString(" ")
			sb.WriteString(rows[r][c])
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
		if i == 0 {
			sb.WriteString("|")
			for c := 0; c <= maxCol; c++ {
				sb.WriteString("---|")
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")
}

func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
