package sheet

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

// readXLS reads the first sheet of a legacy BIFF workbook.
func readXLS(data []byte, limit int) (rows [][]string, err error) {
	// The decoder panics on some malformed workbooks.
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("open xls: malformed workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoHeader
	}
	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, ErrNoHeader
	}

	for i := 0; i <= int(ws.MaxRow); i++ {
		if limit >= 0 && len(rows) > limit {
			break
		}
		row := ws.Row(i)
		if row == nil {
			continue
		}
		last := row.LastCol()
		cols := make([]string, last)
		for j := 0; j < last; j++ {
			cols[j] = row.Col(j)
		}
		if blank(cols) {
			continue
		}
		rows = append(rows, cols)
	}
	return rows, nil
}
