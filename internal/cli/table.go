package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

const tablePadding = 2

func writeTable(out io.Writer, headers []string, rows [][]string) error {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	measure := func(row []string) {
		for idx, cell := range row {
			if w := runewidth.StringWidth(stripANSI(cell)); w > widths[idx] {
				widths[idx] = w
			}
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	writer := bufio.NewWriter(out)
	writeRow := func(row []string) {
		for idx := 0; idx < colCount; idx++ {
			cell := ""
			if idx < len(row) {
				cell = row[idx]
			}
			writer.WriteString(cell)
			if idx < colCount-1 {
				padding := widths[idx] - runewidth.StringWidth(stripANSI(cell))
				if padding < 0 {
					padding = 0
				}
				writer.WriteString(strings.Repeat(" ", padding+tablePadding))
			}
		}
		writer.WriteString("\n")
	}

	if len(headers) > 0 {
		writeRow(headers)
	}
	for _, row := range rows {
		writeRow(row)
	}
	return writer.Flush()
}

func stripANSI(value string) string {
	if !strings.Contains(value, "\x1b[") {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] != 0x1b || i+1 >= len(value) || value[i+1] != '[' {
			b.WriteByte(value[i])
			continue
		}
		i += 2
		for i < len(value) && (value[i] < 0x40 || value[i] > 0x7e) {
			i++
		}
	}
	return b.String()
}
