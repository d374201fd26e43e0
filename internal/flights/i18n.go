package flights

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key.
const (
	keyStatusScheduled = "status.scheduled"
	keyStatusPaused    = "status.paused"
	keyStatusFlying    = "status.flying"
	keyStatusLanded    = "status.landed"
	keyStatusUnknown   = "status.unknown"

	keyPopupTitle     = "%s with %s"
	keyPopupUnknown   = "Unknown Flight"
	keyPopupStatus    = "Status: %s"
	keyPopupAltitude  = "Altitude: %s m"
	keyPopupDeparture = "Departure: %s"
)

var translations = map[language.Tag]map[string]string{
	language.Spanish: {
		keyStatusScheduled: "Programado",
		keyStatusPaused:    "En pausa",
		keyStatusFlying:    "En vuelo",
		keyStatusLanded:    "Aterrizado",
		keyStatusUnknown:   "Desconocido",
		keyPopupTitle:      "%s con %s",
		keyPopupUnknown:    "Vuelo desconocido",
		keyPopupStatus:     "Estado: %s",
		keyPopupAltitude:   "Altitud: %s m",
		keyPopupDeparture:  "Salida: %s",
	},
	language.English: {
		keyStatusScheduled: "Scheduled",
		keyStatusPaused:    "Paused",
		keyStatusFlying:    "Flying",
		keyStatusLanded:    "Landed",
		keyStatusUnknown:   "Unknown",
		keyPopupTitle:      "%s with %s",
		keyPopupUnknown:    "Unknown Flight",
		keyPopupStatus:     "Status: %s",
		keyPopupAltitude:   "Altitude: %s m",
		keyPopupDeparture:  "Departure: %s",
	},
}

var dashboardCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic("invalid translation " + key + ": " + err.Error())
			}
		}
	}
	return b
}

// Translator renders dashboard strings in one locale
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// NewTranslator returns a translator for "es" or "en"; anything else falls back to Spanish
func NewTranslator(locale string) *Translator {
	tag := language.Spanish
	if locale == "en" {
		tag = language.English
	}
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(dashboardCatalog)),
	}
}

// Locale returns the base language code in use
func (t *Translator) Locale() string {
	base, _ := t.tag.Base()
	return base.String()
}

// Status returns the translated status label
func (t *Translator) Status(s Status) string {
	return t.printer.Sprintf(s.info().labelKey)
}

func (t *Translator) sprintf(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}
