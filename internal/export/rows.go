// Package export renders appointment reports for the salon dashboard.
package export

import (
	"fmt"
	"time"

	"salonbook/internal/models"
)

var headers = []interface{}{
	"ID", "Date", "Start", "End", "Service", "Customer ID",
	"Status", "Attendance", "Price", "Tip", "Total", "Created At",
}

// lastColumn is the column letter of the final header.
const lastColumn = "L"

func appointmentRow(a *models.Appointment, services map[string]*models.Service, loc *time.Location) []interface{} {
	serviceName := a.ServiceID
	if svc, ok := services[a.ServiceID]; ok && svc.Name != "" {
		serviceName = svc.Name
	}
	start := a.Start.In(loc)
	return []interface{}{
		a.ID,
		start.Format(models.DateLayout),
		start.Format("15:04"),
		a.End.In(loc).Format("15:04"),
		serviceName,
		a.CustomerID,
		a.Status,
		a.Attendance,
		money(a.BookedPriceCents),
		money(a.TipCents),
		money(a.TotalPriceCents),
		a.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
	}
}

func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
