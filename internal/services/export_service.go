package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/clinic-service/internal/repositories"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	codesSheet      = "Session codes"
	exportRowLimit  = 5000
)

var codeHeader = []string{"Timestamp", "Station", "Student", "Code", "Issued by"}

type exportService struct {
	repo   repositories.Repository
	clock  Clock
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, clock Clock, logger *slog.Logger) ExportService {
	if clock == nil {
		clock = SystemClock
	}
	return &exportService{repo: repo, clock: clock, logger: logger}
}

// SessionCodes renders the code history as a single-sheet workbook, newest first
func (s *exportService) SessionCodes(ctx context.Context, filters repositories.SessionCodeFilters) (*ExportFile, error) {
	if filters.Limit <= 0 {
		filters.Limit = exportRowLimit
	}
	records, err := s.repo.SessionCode().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list session codes: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", codesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Station,
			r.Student,
			r.Code,
			r.IssuedBy,
		})
	}

	if err := writeSheet(f, codesSheet, codeHeader, rows); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("Session codes exported", "rows", len(rows))
	return &ExportFile{
		Name:        fmt.Sprintf("session_codes_%s.xlsx", s.clock.Now().Format("2006-01-02")),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string) error {
	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}

	end, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("new style: %w", err)
	}
	_ = f.SetCellStyle(sheet, "A1", end, bold)
	_ = f.AutoFilter(sheet, "A1:"+end, nil)

	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(sheet, cell, val); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	// width from the header and the first rows
	for c := 1; c <= len(header); c++ {
		width := len(header[c-1])
		for r := 0; r < min(50, len(rows)); r++ {
			width = max(width, len(rows[r][c-1]))
		}
		col, err := excelize.ColumnNumberToName(c)
		if err != nil {
			return err
		}
		_ = f.SetColWidth(sheet, col, col, min(max(float64(width)*1.1, 12), 40))
	}
	return nil
}
