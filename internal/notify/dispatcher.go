package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"salonbook/internal/events"

	"github.com/rs/zerolog"
)

const defaultQueueSize = 64

// Dispatcher turns bus events into staff notifications. Bus handlers only
// enqueue; delivery happens on the Start goroutine.
type Dispatcher struct {
	sender Notifier
	loc    *time.Location
	queue  chan string
	logger *zerolog.Logger
}

func NewDispatcher(sender Notifier, loc *time.Location, logger *zerolog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		sender: sender,
		loc:    loc,
		queue:  make(chan string, defaultQueueSize),
		logger: logger,
	}
}

// Subscribe registers the dispatcher on the bus.
func (d *Dispatcher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(d.handle,
		events.EventAppointmentConfirmed,
		events.EventAppointmentCancelled,
		events.EventAppointmentDeleted,
		events.EventHoldsSwept,
	)
}

func (d *Dispatcher) handle(ev *events.Event) error {
	text, err := d.format(ev)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	select {
	case d.queue <- text:
	default:
		d.logger.Warn().Str("event", ev.Type).Msg("notification queue full, dropping")
	}
	return nil
}

func (d *Dispatcher) format(ev *events.Event) (string, error) {
	switch ev.Type {
	case events.EventAppointmentConfirmed, events.EventAppointmentCancelled:
		var p events.AppointmentEventPayload
		if err := ev.Decode(&p); err != nil {
			return "", fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		title := "Новая запись"
		if ev.Type == events.EventAppointmentCancelled {
			title = "Запись отменена"
		}
		return d.formatAppointment(title, p), nil
	case events.EventAppointmentDeleted:
		var p events.AppointmentEventPayload
		if err := ev.Decode(&p); err != nil {
			return "", fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return fmt.Sprintf("*Запись удалена*\nID: `%s`", p.AppointmentID), nil
	case events.EventHoldsSwept:
		var p events.SweepEventPayload
		if err := ev.Decode(&p); err != nil {
			return "", fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		// пустые прогоны не шлём
		if p.HoldsReleased == 0 && p.SlotsDeleted == 0 {
			return "", nil
		}
		return fmt.Sprintf("Очистка брони: снято удержаний %d, удалено слотов %d", p.HoldsReleased, p.SlotsDeleted), nil
	default:
		return "", nil
	}
}

func (d *Dispatcher) formatAppointment(title string, p events.AppointmentEventPayload) string {
	var sb strings.Builder
	sb.WriteString("*" + title + "*\n")
	if p.CustomerName != "" {
		sb.WriteString("Клиент: " + escapeMarkdown(p.CustomerName) + "\n")
	}
	service := p.ServiceName
	if service == "" {
		service = p.ServiceID
	}
	sb.WriteString("Услуга: " + escapeMarkdown(service) + "\n")
	sb.WriteString(fmt.Sprintf("Время: %s - %s\n",
		p.Start.In(d.loc).Format("02.01.2006 15:04"),
		p.End.In(d.loc).Format("15:04")))
	sb.WriteString(fmt.Sprintf("Сумма: %s", formatCents(p.TotalPriceCents)))
	return sb.String()
}

// Start delivers queued notifications until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-d.queue:
			if err := d.sender.Notify(ctx, text); err != nil {
				d.logger.Error().Err(err).Msg("notification send error")
			}
		}
	}
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

var markdownReplacer = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownReplacer.Replace(s)
}
