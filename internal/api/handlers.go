package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/export"
	"salonbook/internal/logging"
	"salonbook/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type windowsResponse struct {
	Date   string          `json:"date"`
	Open   []models.Window `json:"open"`
	Free   []models.Window `json:"free"`
	Starts []time.Time     `json:"starts,omitempty"`
}

func (s *HTTPServer) handleWindows(w http.ResponseWriter, r *http.Request) {
	day := strings.TrimSpace(r.URL.Query().Get("date"))
	if day == "" {
		writeDomainError(w, domain.Invalid("date is required"))
		return
	}

	open, err := s.svc.Schedule.OpenWindows(r.Context(), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	free, err := s.svc.Schedule.FreeWindows(r.Context(), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := windowsResponse{Date: day, Open: nonNil(open), Free: nonNil(free)}

	if raw := r.URL.Query().Get("duration"); raw != "" {
		duration, err := strconv.Atoi(raw)
		if err != nil {
			writeDomainError(w, domain.Invalid("duration must be a number of minutes"))
			return
		}
		starts, err := s.svc.Schedule.CandidateStarts(r.Context(), day, duration)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp.Starts = starts
	}
	writeOK(w, resp)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	day := strings.TrimSpace(r.URL.Query().Get("date"))
	if day == "" {
		writeDomainError(w, domain.Invalid("date is required"))
		return
	}
	slots, err := s.svc.Schedule.Slots(r.Context(), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, map[string]any{"date": day, "slots": nonNil(slots)})
}

func (s *HTTPServer) handleCreateHold(w http.ResponseWriter, r *http.Request) {
	var req models.HoldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	hold, err := s.svc.Holds.CreateHold(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, hold)
}

func (s *HTTPServer) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	hold, err := s.svc.Holds.ReleaseHold(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, hold)
}

func (s *HTTPServer) handleConfirmAppointment(w http.ResponseWriter, r *http.Request) {
	var in models.ConfirmInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeDomainError(w, err)
		return
	}
	if in.AdminOverride && !s.auth.isAdmin(r) {
		writeDomainError(w, permissionDenied("admin_override requires the admin permission"))
		return
	}
	appt, err := s.svc.Appointments.ConfirmAppointment(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, appt)
}

func (s *HTTPServer) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.svc.Appointments.GetAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, appt)
}

func (s *HTTPServer) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	from, to, _, err := s.dateRange(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	appts, err := s.svc.Appointments.ListAppointments(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, nonNil(appts))
}

func (s *HTTPServer) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := s.svc.Appointments.CancelAppointment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, appt)
}

func (s *HTTPServer) handleDeleteAppointment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Appointments.DeleteAppointment(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, map[string]string{"id": id})
}

func (s *HTTPServer) handleSetAttendance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Attendance string `json:"attendance"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDomainError(w, err)
		return
	}
	appt, err := s.svc.Appointments.SetAttendance(r.Context(), r.PathValue("id"), body.Attendance)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, appt)
}

func (s *HTTPServer) handleCleanupExpiredHolds(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Sweeper.Sweep(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, res)
}

func (s *HTTPServer) handleResync(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Resyncer.Resync(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, res)
}

func (s *HTTPServer) handleAttendanceSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Attendance.SweepAttendance(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, map[string]int{"completed": n})
}

func (s *HTTPServer) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	report, err := s.loadReport(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, report.from, report.to, report.appointments, report.services, report.loc); err != nil {
		writeDomainError(w, err)
		return
	}

	name := fmt.Sprintf("appointments_%s_%s.xlsx",
		report.from.Format(models.DateLayout), report.to.AddDate(0, 0, -1).Format(models.DateLayout))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.svc.Sheets == nil {
		writeDomainError(w, domain.Invalid("google sheets export is not configured"))
		return
	}
	report, err := s.loadReport(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.svc.Sheets.PublishAppointments(r.Context(), report.appointments, report.services); err != nil {
		logging.FromContext(r.Context(), s.logger).Error().Err(err).Msg("sheets export failed")
		writeError(w, http.StatusBadGateway, domain.CodeInternal, "sheets export failed")
		return
	}
	writeOK(w, map[string]int{"rows": len(report.appointments)})
}

func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		value any
		err   error
	)
	switch r.PathValue("name") {
	case models.SettingBusinessHours:
		value, err = s.svc.Schedule.GetBusinessHours(ctx)
	case models.SettingDayClosures:
		value, err = s.svc.Schedule.GetDayClosures(ctx)
	case models.SettingSpecialHours:
		value, err = s.svc.Schedule.GetSpecialHours(ctx)
	default:
		err = fmt.Errorf("setting %q: %w", r.PathValue("name"), domain.ErrNotFound)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, value)
}

func (s *HTTPServer) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	switch r.PathValue("name") {
	case models.SettingBusinessHours:
		var hours models.BusinessHours
		if err = decodeJSON(w, r, &hours); err == nil {
			err = s.svc.Schedule.SaveBusinessHours(ctx, hours)
		}
	case models.SettingDayClosures:
		var closures []models.DayClosure
		if err = decodeJSON(w, r, &closures); err == nil {
			err = s.svc.Schedule.SaveDayClosures(ctx, closures)
		}
	case models.SettingSpecialHours:
		var special []models.SpecialHours
		if err = decodeJSON(w, r, &special); err == nil {
			err = s.svc.Schedule.SaveSpecialHours(ctx, special)
		}
	default:
		err = fmt.Errorf("setting %q: %w", r.PathValue("name"), domain.ErrNotFound)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.handleGetSettings(w, r)
}

func (s *HTTPServer) handleListServices(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	services, err := s.svc.Catalog.ListServices(r.Context(), !all)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, nonNil(services))
}

func (s *HTTPServer) handleSaveService(w http.ResponseWriter, r *http.Request) {
	var svc models.Service
	if err := decodeJSON(w, r, &svc); err != nil {
		writeDomainError(w, err)
		return
	}
	saved, err := s.svc.Catalog.SaveService(r.Context(), &svc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, saved)
}

func (s *HTTPServer) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var customer models.Customer
	if err := decodeJSON(w, r, &customer); err != nil {
		writeDomainError(w, err)
		return
	}
	created, err := s.svc.Catalog.CreateCustomer(r.Context(), &customer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeOK(w, created)
}

type report struct {
	from, to     time.Time
	loc          *time.Location
	appointments []*models.Appointment
	services     map[string]*models.Service
}

func (s *HTTPServer) loadReport(r *http.Request) (*report, error) {
	from, to, loc, err := s.dateRange(r)
	if err != nil {
		return nil, err
	}
	appts, err := s.svc.Appointments.ListAppointments(r.Context(), from, to)
	if err != nil {
		return nil, err
	}
	services, err := s.svc.Catalog.ListServices(r.Context(), false)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}
	return &report{from: from, to: to, loc: loc, appointments: appts, services: byID}, nil
}

// dateRange parses ?from=&to= as inclusive salon-local dates and returns the
// half-open range [from 00:00, day after to 00:00).
func (s *HTTPServer) dateRange(r *http.Request) (time.Time, time.Time, *time.Location, error) {
	loc, err := s.location(r.Context())
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}
	q := r.URL.Query()
	from, err := time.ParseInLocation(models.DateLayout, q.Get("from"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, nil, domain.Invalid("from must be %s", models.DateLayout)
	}
	to, err := time.ParseInLocation(models.DateLayout, q.Get("to"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, nil, domain.Invalid("to must be %s", models.DateLayout)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, nil, domain.Invalid("to is before from")
	}
	return from, to.AddDate(0, 0, 1), loc, nil
}

func (s *HTTPServer) location(ctx context.Context) (*time.Location, error) {
	hours, err := s.svc.Schedule.GetBusinessHours(ctx)
	if err != nil {
		return nil, err
	}
	return hours.Location()
}

// nonNil keeps empty lists as [] in JSON.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
