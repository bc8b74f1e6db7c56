package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"salonbook/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsPublisher mirrors an appointment report into a Google Sheets tab.
type SheetsPublisher struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
}

// NewSheetsPublisher authenticates with a service-account credentials file.
func NewSheetsPublisher(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, loc *time.Location) (*SheetsPublisher, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return NewSheetsPublisherWithOptions(ctx, spreadsheetID, sheetName, loc, option.WithHTTPClient(config.Client(ctx)))
}

// NewSheetsPublisherWithOptions builds a publisher from raw client options.
func NewSheetsPublisherWithOptions(ctx context.Context, spreadsheetID, sheetName string, loc *time.Location, opts ...option.ClientOption) (*SheetsPublisher, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SheetsPublisher{service: srv, spreadsheetID: spreadsheetID, sheetName: sheetName, loc: loc}, nil
}

// PublishAppointments clears the tab and rewrites it with the given rows.
func (p *SheetsPublisher) PublishAppointments(ctx context.Context, appointments []*models.Appointment, services map[string]*models.Service) error {
	values := make([][]interface{}, 0, len(appointments)+1)
	values = append(values, headers)
	for _, a := range appointments {
		values = append(values, appointmentRow(a, services, p.loc))
	}

	clearRange := fmt.Sprintf("%s!A:%s", p.sheetName, lastColumn)
	if _, err := p.service.Spreadsheets.Values.Clear(p.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	writeRange := fmt.Sprintf("%s!A1:%s%d", p.sheetName, lastColumn, len(values))
	_, err := p.service.Spreadsheets.Values.Update(p.spreadsheetID, writeRange, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}
	return nil
}
