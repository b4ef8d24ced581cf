package logs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Logs"

var exportHeaders = []string{"Fecha", "Hora", "Tarea", "Nota", "Registrado por", "Editado por", "Tarea borrada"}

// Export escribe en w un xlsx con los logs enriquecidos de [from, to], con
// fechas y horas expresadas en loc.
func (s *Service) Export(ctx context.Context, w io.Writer, petID string, from, to time.Time, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	entries, err := s.ListRange(ctx, petID, from, to)
	if err != nil {
		return fmt.Errorf("export logs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("export logs: header style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeaders); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, header); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}

	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export logs: %w", err)
		}
		ts := e.Timestamp.In(loc)
		deleted := "No"
		if e.IsTaskDeleted {
			deleted = "Sí"
		}
		row := []any{
			ts.Format("2006-01-02"),
			ts.Format("15:04:05"),
			e.TaskName,
			e.Note,
			e.CreatedByName,
			e.UpdatedByName,
			deleted,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("export logs: row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(exportSheet, "A", "B", 12); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "C", "F", 22); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export logs: %w", err)
	}
	return nil
}
