package flights

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"
)

var popupTemplate = template.Must(template.New("popup").Parse(
	`<div class="flight-popup"><div class="font-bold">{{.Title}}</div><div>{{.Status}}</div><div>{{.Altitude}}</div>{{if .Departure}}<div>{{.Departure}}</div>{{end}}</div>`,
))

type popupData struct {
	Title     string
	Status    string
	Altitude  string
	Departure string
}

// PopupBuilder renders marker popups and the display strings shared with the list views
type PopupBuilder struct {
	tr     *Translator
	loc    *time.Location
	layout string
}

// NewPopupBuilder creates a builder for the given locale, display timezone and time layout
func NewPopupBuilder(locale string, loc *time.Location, layout string) *PopupBuilder {
	if loc == nil {
		loc = time.Local
	}
	if layout == "" {
		layout = "15:04"
	}
	return &PopupBuilder{
		tr:     NewTranslator(locale),
		loc:    loc,
		layout: layout,
	}
}

// StatusLabel returns the translated status text
func (b *PopupBuilder) StatusLabel(s Status) string {
	return b.tr.Status(s)
}

// FormatDeparture formats a departure in the display timezone, or "" when absent
func (b *PopupBuilder) FormatDeparture(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(b.loc).Format(b.layout)
}

// Build renders the escaped popup HTML for a positioned record
func (b *PopupBuilder) Build(rec JoinedRecord) (string, error) {
	if rec.Position == nil {
		return "", fmt.Errorf("record %s has no position", rec.ID)
	}

	data := popupData{
		Title:    b.tr.sprintf(keyPopupUnknown),
		Status:   b.tr.sprintf(keyPopupStatus, b.tr.Status(rec.Status())),
		Altitude: b.tr.sprintf(keyPopupAltitude, strconv.FormatFloat(rec.Position.Altitude, 'f', -1, 64)),
	}
	if rec.Flight != nil {
		data.Title = b.tr.sprintf(keyPopupTitle, rec.Flight.PilotName, rec.Flight.PassengerName)
		if dep := b.FormatDeparture(rec.Flight.ScheduledDeparture); dep != "" {
			data.Departure = b.tr.sprintf(keyPopupDeparture, dep)
		}
	}

	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render popup: %w", err)
	}
	return buf.String(), nil
}
