package sos

import (
	"embed"
	"encoding/json"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog formats localized alert titles and bodies. Unknown locales and
// untranslated messages fall back to English.
type Catalog struct {
	bundle *i18n.Bundle
}

// NewCatalog loads the embedded locale files
func NewCatalog() (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, file := range []string{"locales/en.json", "locales/he.json"} {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, err
		}
	}
	return &Catalog{bundle: bundle}, nil
}

// Format selects the title and body for a notification type in the given
// locale. senderName fills the message template.
func (c *Catalog) Format(ntype models.NotificationType, locale, senderName string) (title, body string) {
	localizer := i18n.NewLocalizer(c.bundle, locale)

	var titleID, bodyID string
	switch ntype {
	case models.NotificationSOSResponse:
		titleID, bodyID = "sos_response_title", "sos_response_body"
	case models.NotificationSOSStopped:
		titleID, bodyID = "sos_stopped_title", "sos_stopped_body"
	default:
		titleID, bodyID = "sos_sent_title", "sos_sent_body"
	}

	data := map[string]interface{}{"Name": senderName}
	return c.localize(localizer, titleID, data), c.localize(localizer, bodyID, data)
}

func (c *Catalog) localize(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}
