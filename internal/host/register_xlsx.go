package host

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"sheetbatch/internal/model"
)

// Register workbook layout: the first sheet holds one row per drawing
// sheet. Id, Number, Name, Revision and Paper Size are read into the
// snapshot; a "#<id>" header is a built-in property; any other header is a
// user-defined property.
const (
	colID        = "id"
	colNumber    = "number"
	colName      = "name"
	colRevision  = "revision"
	colPaperSize = "paper size"
)

func LoadRegisterXLSX(path string) (*Register, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open register workbook %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheetNames := f.GetSheetList()
	if len(sheetNames) == 0 {
		return nil, fmt.Errorf("register workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheetNames[0])
	if err != nil {
		return nil, fmt.Errorf("read register rows %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("register workbook %s: header row is missing", path)
	}

	header := make([]string, len(rows[0]))
	numberCol := -1
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
		if strings.EqualFold(header[i], colNumber) {
			numberCol = i
		}
	}
	if numberCol < 0 {
		return nil, fmt.Errorf("register workbook %s: %q column is required", path, "Number")
	}

	reg := NewRegister(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for r, row := range rows[1:] {
		if rowEmpty(row) {
			continue
		}
		var sheet model.Sheet
		builtins := map[int]ParameterValue{}
		params := map[string]ParameterValue{}
		for i, name := range header {
			if name == "" {
				continue
			}
			cell := ""
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			switch strings.ToLower(name) {
			case colID:
				sheet.ID = cell
			case colNumber:
				sheet.Number = cell
			case colName:
				sheet.Name = cell
			case colRevision:
				sheet.Revision = cell
			case colPaperSize:
				sheet.PaperSize = cell
			default:
				if strings.HasPrefix(name, "#") {
					id, err := strconv.Atoi(strings.TrimPrefix(name, "#"))
					if err != nil {
						return nil, fmt.Errorf("register workbook %s: header %q is not a built-in id", path, name)
					}
					if cell != "" {
						builtins[id] = StringValue(cell)
					}
					continue
				}
				if cell != "" {
					params[name] = StringValue(cell)
				}
			}
		}
		if err := reg.AddSheet(sheet, builtins, params); err != nil {
			return nil, fmt.Errorf("register workbook %s row %d: %w", path, r+2, err)
		}
	}
	return reg, nil
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
