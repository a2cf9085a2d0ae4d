package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()

	file := excelize.NewFile()
	defer file.Close()

	require.NoError(t, file.SetSheetName("Sheet1", "Applications"))
	require.NoError(t, file.SetSheetRow("Applications", "A1", &[]interface{}{"App ID", "Application"}))
	require.NoError(t, file.SetSheetRow("Applications", "A2", &[]interface{}{"APP1", "CRM"}))
	require.NoError(t, file.SetSheetRow("Applications", "A3", &[]interface{}{"APP2", "ERP"}))

	_, err := file.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, file.SetSheetRow("Data", "A1", &[]interface{}{"Data ID", "Entity"}))
	require.NoError(t, file.SetSheetRow("Data", "A2", &[]interface{}{"D1", "Customer"}))

	path := filepath.Join(t.TempDir(), "catalogs.xlsx")
	require.NoError(t, file.SaveAs(path))
	return path
}

func TestReadCSV(t *testing.T) {
	t.Run("Reads header and rows", func(t *testing.T) {
		input := "\ufeffID, Name\nP1,Slow onboarding\n\nP2,\"Manual, error prone reporting\"\n"

		table, err := ReadCSV(strings.NewReader(input))
		require.NoError(t, err)

		assert.Equal(t, []string{"ID", "Name"}, table.Columns)
		require.Len(t, table.Rows, 2, "Blank lines should be dropped")
		assert.Equal(t, "Manual, error prone reporting", table.Cell(1, 1))
	})

	t.Run("Tolerates ragged rows", func(t *testing.T) {
		table, err := ReadCSV(strings.NewReader("ID,Name,Owner\nP1,Only name\n"))
		require.NoError(t, err)

		assert.Equal(t, "", table.Cell(0, 2))
	})

	t.Run("Empty input is an input error", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, model.ErrInput)
	})
}

func TestReadFile(t *testing.T) {
	t.Run("Reads CSV files named after the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pain_points.csv")
		require.NoError(t, os.WriteFile(path, []byte("ID,Text\nP1,Slow\n"), 0644))

		table, err := ReadFile(path, "")
		require.NoError(t, err)

		assert.Equal(t, "pain_points", table.Name)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("Reads the first sheet by default", func(t *testing.T) {
		table, err := ReadFile(writeWorkbook(t), "")
		require.NoError(t, err)

		assert.Equal(t, "Applications", table.Name)
		assert.Equal(t, []string{"App ID", "Application"}, table.Columns)
		assert.Len(t, table.Rows, 2)
	})

	t.Run("Reads a selected sheet", func(t *testing.T) {
		table, err := ReadFile(writeWorkbook(t), "Data")
		require.NoError(t, err)

		assert.Equal(t, "D1", table.Cell(0, 0))
	})

	t.Run("Missing sheet is an input error", func(t *testing.T) {
		_, err := ReadFile(writeWorkbook(t), "Missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInput)
	})

	t.Run("Unsupported extension is an input error", func(t *testing.T) {
		_, err := ReadFile("catalog.json", "")
		assert.ErrorIs(t, err, model.ErrInput)
	})

	t.Run("Missing file fails", func(t *testing.T) {
		_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"), "")
		assert.Error(t, err)
	})
}

func TestReadExcel(t *testing.T) {
	t.Run("Reads from a reader", func(t *testing.T) {
		file, err := os.Open(writeWorkbook(t))
		require.NoError(t, err)
		defer file.Close()

		table, err := ReadExcel(file, "Applications")
		require.NoError(t, err)

		catalog, err := Build(table, "App ID", []string{"Application"})
		require.NoError(t, err)
		assert.Equal(t, []string{"APP1", "APP2"}, catalog.IDs())
	})
}

func TestSheetNames(t *testing.T) {
	t.Run("Lists sheets in workbook order", func(t *testing.T) {
		names, err := SheetNames(writeWorkbook(t))
		require.NoError(t, err)

		assert.Equal(t, []string{"Applications", "Data"}, names)
	})
}
