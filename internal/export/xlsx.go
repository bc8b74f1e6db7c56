package export

import (
	"fmt"
	"io"
	"time"

	"salonbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Записи"

// WriteXLSX writes an appointment report for [from, to) to w.
func WriteXLSX(
	w io.Writer,
	from, to time.Time,
	appointments []*models.Appointment,
	services map[string]*models.Service,
	loc *time.Location,
) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	// заголовок периода
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Период: %s - %s",
		from.In(loc).Format("02.01.2006"), to.In(loc).Add(-time.Second).Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", lastColumn+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	if err := f.SetSheetRow(sheetName, "A2", &headers); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A2", lastColumn+"2", headerStyle)

	cancelledStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FCE4D6"}, Pattern: 1},
	})

	for i, a := range appointments {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := appointmentRow(a, services, loc)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		if a.Status == models.StatusCancelled {
			end, _ := excelize.CoordinatesToCellName(len(headers), row)
			_ = f.SetCellStyle(sheetName, cell, end, cancelledStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", lastColumn, 14)
	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing file: %w", err)
	}
	return nil
}
