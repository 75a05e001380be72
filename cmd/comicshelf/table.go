package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type column struct {
	header  string
	numeric bool
}

func col(header string) column { return column{header: header} }

// num is a right-aligned column.
func num(header string) column { return column{header: header, numeric: true} }

// sheet collects the rows of one terminal table.
type sheet struct {
	title string
	cols  []column
	rows  []table.Row
}

func newSheet(title string, cols ...column) *sheet {
	return &sheet{title: title, cols: cols}
}

// add appends a row. Missing cells are blank and extra cells are dropped.
func (s *sheet) add(cells ...string) {
	row := make(table.Row, len(s.cols))
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	s.rows = append(s.rows, row)
}

func (s *sheet) String() string {
	if len(s.cols) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle(s.title)

	header := make(table.Row, 0, len(s.cols))
	configs := make([]table.ColumnConfig, 0, len(s.cols))
	for i, c := range s.cols {
		header = append(header, c.header)
		if c.numeric {
			configs = append(configs, table.ColumnConfig{Number: i + 1, Align: text.AlignRight})
		}
	}
	tw.AppendHeader(header)
	tw.AppendRows(s.rows)
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
