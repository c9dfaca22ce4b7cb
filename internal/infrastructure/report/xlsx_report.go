package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
)

const (
	summarySheet = "Summary"
	errorsSheet  = "Errors"
	timeLayout   = "2006-01-02 15:04:05"
)

type xlsxReportWriter struct{}

// NewXLSXReportWriter import natijasini Excel faylga yozish
func NewXLSXReportWriter() repository.ReportWriter {
	return &xlsxReportWriter{}
}

// Render builds a workbook with a per-kind summary and the kept error entries.
func (w *xlsxReportWriter) Render(job *entity.Job) ([]byte, string, error) {
	if job == nil {
		return nil, "", errors.New("job bo'sh")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, "", err
	}
	if _, err := f.NewSheet(errorsSheet); err != nil {
		return nil, "", err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, "", err
	}

	if err := writeSummary(f, job, headerStyle); err != nil {
		return nil, "", err
	}
	if err := writeErrors(f, job, headerStyle); err != nil {
		return nil, "", err
	}

	idx, _ := f.GetSheetIndex(summarySheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("xlsx yozilmadi: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("import_%s.xlsx", job.ID), nil
}

func writeSummary(f *excelize.File, job *entity.Job, headerStyle int) error {
	info := [][]any{
		{"Job ID", job.ID},
		{"Status", string(job.Status)},
		{"Progress", job.Progress},
		{"Created", job.CreatedAt.Format(timeLayout)},
		{"Completed", formatTime(job.CompletedAt)},
		{"Error", job.Error},
		{"Errors total", job.ErrorsTotal},
	}
	if job.Storage != nil {
		info = append(info,
			[]any{"Storage status", string(job.Storage.Status)},
			[]any{"Storage cleanup", job.Storage.CleanupPerformed},
		)
	}
	if res := job.Result; res != nil {
		info = append(info,
			[]any{"Elapsed", res.Elapsed.Round(time.Millisecond).String()},
			[]any{"Rows per second", fmt.Sprintf("%.1f", res.RowsPerSec)},
		)
	}

	for i, row := range info {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}

	start := len(info) + 2
	header := []any{"Kind", "Created", "Updated", "Skipped", "Errors"}
	cell, _ := excelize.CoordinatesToCellName(1, start)
	if err := f.SetSheetRow(summarySheet, cell, &header); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), start)
	if err := f.SetCellStyle(summarySheet, cell, last, headerStyle); err != nil {
		return err
	}

	if job.Result != nil {
		for i, kind := range entity.PersistOrder {
			ks := job.Result.For(kind)
			row := []any{string(kind), ks.Created, ks.Updated, ks.Skipped, ks.Errors}
			cell, _ := excelize.CoordinatesToCellName(1, start+1+i)
			if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 20)
	_ = f.SetColWidth(summarySheet, "B", "E", 14)
	return nil
}

func writeErrors(f *excelize.File, job *entity.Job, headerStyle int) error {
	header := []any{"Type", "Entity", "Identifier", "Message"}
	if err := f.SetSheetRow(errorsSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(errorsSheet, "A1", "D1", headerStyle); err != nil {
		return err
	}

	entries := job.Errors
	if job.Result != nil && len(job.Result.Errors) > len(entries) {
		entries = job.Result.Errors
	}
	for i, e := range entries {
		row := []any{e.Type, e.Entity, e.Identifier, e.Message}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(errorsSheet, cell, &row); err != nil {
			return err
		}
	}
	if job.ErrorsTotal > len(entries) {
		cell, _ := excelize.CoordinatesToCellName(1, len(entries)+3)
		_ = f.SetCellValue(errorsSheet, cell, fmt.Sprintf("... va yana %d ta xato", job.ErrorsTotal-len(entries)))
	}

	_ = f.SetColWidth(errorsSheet, "A", "C", 20)
	_ = f.SetColWidth(errorsSheet, "D", "D", 80)
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}
