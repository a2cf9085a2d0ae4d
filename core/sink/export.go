package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/siherrmann/mapper/helper"
	"github.com/siherrmann/mapper/model"
	"github.com/xuri/excelize/v2"
)

const (
	MappingsSheet = "Mappings"
	SummarySheet  = "Summary"
)

var exportHeader = []string{"source_id", "target_id", "rationale"}

// WriteCSV writes one row per relationship with a header row.
func WriteCSV(w io.Writer, relationships []*model.Relationship) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(exportHeader); err != nil {
		return helper.NewError("write csv header", err)
	}
	for _, rel := range relationships {
		if err := writer.Write([]string{rel.SourceID, rel.TargetID, rel.Rationale}); err != nil {
			return helper.NewError("write csv row", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return helper.NewError("flush csv", err)
	}
	return nil
}

// WriteExcel writes a workbook with the relationships on the Mappings sheet
// and the summary numbers on the Summary sheet.
func WriteExcel(w io.Writer, relationships []*model.Relationship, summary model.Summary) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", MappingsSheet); err != nil {
		return helper.NewError("rename sheet", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return helper.NewError("create header style", err)
	}

	if err := file.SetSheetRow(MappingsSheet, "A1", &exportHeader); err != nil {
		return helper.NewError("write mappings header", err)
	}
	if err := file.SetCellStyle(MappingsSheet, "A1", "C1", headerStyle); err != nil {
		return helper.NewError("style mappings header", err)
	}
	for i, rel := range relationships {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return helper.NewError("cell name", err)
		}
		row := []interface{}{rel.SourceID, rel.TargetID, rel.Rationale}
		if err := file.SetSheetRow(MappingsSheet, cell, &row); err != nil {
			return helper.NewError("write mappings row", err)
		}
	}
	if err := file.SetColWidth(MappingsSheet, "C", "C", 80); err != nil {
		return helper.NewError("set column width", err)
	}

	if _, err := file.NewSheet(SummarySheet); err != nil {
		return helper.NewError("create summary sheet", err)
	}
	summaryRows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Mappings", summary.TotalMappings},
		{"Unique Targets", summary.UniqueTargets},
		{"Mapped Sources", summary.MappedSources},
		{"Failed Batches", summary.FailedBatches},
		{"Unmapped Sources", summary.UnmappedSources},
	}
	for i, row := range summaryRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return helper.NewError("cell name", err)
		}
		if err := file.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return helper.NewError("write summary row", err)
		}
	}
	if err := file.SetCellStyle(SummarySheet, "A1", "B1", headerStyle); err != nil {
		return helper.NewError("style summary header", err)
	}

	if err := file.Write(w); err != nil {
		return helper.NewError("write workbook", err)
	}
	return nil
}

// ExportFile writes the result to path, the format follows the extension (.csv or .xlsx).
func ExportFile(path string, result *model.MappingResult) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".csv" && ext != ".xlsx" {
		return model.NewInputError("unsupported export format %q", ext)
	}

	file, err := os.Create(path)
	if err != nil {
		return helper.NewError("create export file", err)
	}
	defer file.Close()

	if ext == ".csv" {
		err = WriteCSV(file, result.Relationships)
	} else {
		err = WriteExcel(file, result.Relationships, result.Summary())
	}
	if err != nil {
		return helper.NewError(fmt.Sprintf("export %s", path), err)
	}
	return file.Close()
}

// FileSink exports the final mapping table to a file when a run completes.
type FileSink struct {
	NopSink
	Path string
}

// NewFileSink creates a sink exporting to path
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Completed(ctx context.Context, result *model.MappingResult) error {
	return ExportFile(s.Path, result)
}
