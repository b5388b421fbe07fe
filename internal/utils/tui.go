package utils

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

// Theme implements a Gruvbox-inspired dark theme
var (
	gruvboxFgDark  = text.Colors{text.FgHiBlack}
	gruvboxFgLight = text.Colors{text.FgWhite}
	gruvboxRed     = text.Colors{text.FgRed}
	gruvboxGreen   = text.Colors{text.FgGreen}
	gruvboxYellow  = text.Colors{text.FgYellow}
	gruvboxBlue    = text.Colors{text.FgBlue}

	gruvboxAquaBright = text.Colors{text.FgHiCyan}
	gruvboxBlueBright = text.Colors{text.FgHiBlue}
)

// Theme - exported theme colors for consistent UI
var Theme = struct {
	Success text.Colors
	Warning text.Colors
	Error   text.Colors
	Subtle  text.Colors

	Title       text.Colors
	TableHeader text.Colors
	TableBorder text.Colors
	TableRow    text.Colors
	TableAltRow text.Colors
}{
	Success: gruvboxGreen,
	Warning: gruvboxYellow,
	Error:   gruvboxRed,
	Subtle:  gruvboxFgDark,

	Title:       append(gruvboxAquaBright, text.Bold),
	TableHeader: append(gruvboxBlueBright, text.Bold),
	TableBorder: gruvboxBlue,
	TableRow:    gruvboxFgLight,
	TableAltRow: text.Colors{text.FgWhite, text.Faint},
}

// TableOptions configures table rendering
type TableOptions struct {
	Title string
	Style table.Style
	// Colored disables ANSI colors when false, e.g. when output is not a terminal
	Colored bool
	// ColumnColors colors individual cells by column, keyed by zero-based column
	ColumnColors map[int]func(cell string) text.Colors
}

// DefaultTableOptions returns default table options with Gruvbox theme
func DefaultTableOptions() TableOptions {
	return TableOptions{
		Title:   "sonarfix",
		Style:   table.StyleLight,
		Colored: true,
	}
}

// CreateTable creates a new table writing to w
func CreateTable(w io.Writer, options ...TableOptions) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	opts := DefaultTableOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	if opts.Title != "" {
		t.SetTitle(opts.Title)
	}

	customStyle := opts.Style
	if opts.Colored {
		customStyle.Color.Header = Theme.TableHeader
		customStyle.Color.Border = Theme.TableBorder
		customStyle.Color.Row = Theme.TableRow
		customStyle.Color.RowAlternate = Theme.TableAltRow
		customStyle.Title.Colors = Theme.Title
	} else {
		customStyle.Color = table.ColorOptions{}
		customStyle.Title.Colors = nil
	}
	customStyle.Title.Align = text.AlignCenter

	customStyle.Options.DrawBorder = true
	customStyle.Options.SeparateColumns = true
	customStyle.Options.SeparateHeader = true
	customStyle.Options.SeparateRows = false

	customStyle.Box.PaddingLeft = " "
	customStyle.Box.PaddingRight = " "

	t.SetStyle(customStyle)
	return t
}

// PrintTable renders a table with headers and rows to w
func PrintTable(w io.Writer, headers []string, rows [][]string, options ...TableOptions) {
	opts := DefaultTableOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	t := CreateTable(w, opts)

	headerRow := table.Row{}
	for _, header := range headers {
		headerRow = append(headerRow, header)
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		tableRow := table.Row{}
		for _, cell := range row {
			tableRow = append(tableRow, cell)
		}
		t.AppendRow(tableRow)
	}

	configs := []table.ColumnConfig{}
	for i := range headers {
		config := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignCenter,
		}
		if colorFor, ok := opts.ColumnColors[i]; ok && opts.Colored {
			config.Transformer = func(val interface{}) string {
				cell, _ := val.(string)
				return colorFor(cell).Sprint(cell)
			}
		}
		configs = append(configs, config)
	}
	t.SetColumnConfigs(configs)

	t.Render()
}

// Truncate shortens str to width cells, ending it with tail when cut
func Truncate(str string, width int, tail string) string {
	if width <= 0 || ansi.PrintableRuneWidth(str) <= width {
		return str
	}
	return truncate.StringWithTail(str, uint(width), tail)
}
