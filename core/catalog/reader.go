package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
	"github.com/xuri/excelize/v2"
)

// ReadFile loads a tabular file into a table. CSV files ignore sheet,
// for Excel files an empty sheet selects the first sheet.
func ReadFile(path string, sheet string) (*model.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, helper.NewError("open csv", err)
		}
		defer file.Close()

		table, err := ReadCSV(file)
		if err != nil {
			return nil, err
		}
		table.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return table, nil
	case ".xlsx", ".xlsm":
		file, err := excelize.OpenFile(path)
		if err != nil {
			return nil, helper.NewError("open excel", err)
		}
		defer file.Close()

		return readWorkbook(file, sheet)
	default:
		return nil, model.NewInputError("unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads a CSV table, the first record is the header.
func ReadCSV(r io.Reader) (*model.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, helper.NewError("read csv", err)
	}

	return tableFromRecords("", records)
}

// ReadExcel reads one sheet of an Excel workbook.
func ReadExcel(r io.Reader, sheet string) (*model.Table, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, helper.NewError("open excel", err)
	}
	defer file.Close()

	return readWorkbook(file, sheet)
}

// SheetNames lists the sheets of an Excel workbook in workbook order.
func SheetNames(path string) ([]string, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, helper.NewError("open excel", err)
	}
	defer file.Close()

	return file.GetSheetList(), nil
}

func readWorkbook(file *excelize.File, sheet string) (*model.Table, error) {
	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, model.NewInputError("workbook has no sheets")
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !slices.Contains(sheets, sheet) {
		return nil, model.NewInputError("sheet %q not found, available sheets: %s", sheet, strings.Join(sheets, ", "))
	}

	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, helper.NewError(fmt.Sprintf("read sheet %s", sheet), err)
	}

	return tableFromRecords(sheet, rows)
}

func tableFromRecords(name string, records [][]string) (*model.Table, error) {
	if len(records) == 0 {
		return nil, model.NewInputError("table %q has no header row", name)
	}

	header := make([]string, len(records[0]))
	for i, column := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}

	return &model.Table{Name: name, Columns: header, Rows: rows}, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
