package seeders

import (
	"context"
	"errors"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const whiteTemplate = `<!DOCTYPE html>
<html>
<body style="background:#ffffff;color:#222;font-family:Helvetica,Arial,sans-serif">
  <div style="max-width:600px;margin:0 auto;padding:24px;text-align:center">
    {{if .logoUrl}}<img src="{{.logoUrl}}" alt="{{.eventName}}" style="max-height:80px">{{end}}
    <h1>{{.eventName}}</h1>
    <p>Dear {{.contactName}},</p>
    <p>You are invited to {{.eventName}}{{if .eventLocation}} at {{.eventLocation}}{{end}}.</p>
    {{if .eventDescription}}<p>{{.eventDescription}}</p>{{end}}
    {{if .invitationDates}}<p>Your dates: {{.invitationDates}}</p>{{else if .eventDates}}<p>Dates: {{.eventDates}}</p>{{end}}
    <img src="{{.qrCodeImage}}" alt="{{.invitationCode}}" width="250" height="250">
    <p style="font-size:12px;color:#888">{{.invitationCode}}</p>
  </div>
</body>
</html>`

const blackTemplate = `<!DOCTYPE html>
<html>
<body style="background:#111111;color:#f5f5f5;font-family:Helvetica,Arial,sans-serif">
  <div style="max-width:600px;margin:0 auto;padding:24px;text-align:center">
    {{if .logoUrl}}<img src="{{.logoUrl}}" alt="{{.eventName}}" style="max-height:80px">{{end}}
    <h1>{{.eventName}}</h1>
    <p>{{.contactName}}, your {{.invitationType}} pass is ready.</p>
    {{if .eventLocation}}<p>{{.eventLocation}}</p>{{end}}
    {{if .invitationDates}}<p>{{.invitationDates}}</p>{{else if .eventDates}}<p>{{.eventDates}}</p>{{end}}
    <img src="{{.qrCodeImage}}" alt="{{.invitationCode}}" width="250" height="250" style="background:#fff;padding:8px">
    <p style="font-size:12px;color:#aaa">{{.invitationCode}}</p>
  </div>
</body>
</html>`

// DefaultTemplates are created by SeedTemplates when missing.
func DefaultTemplates() []models.Template {
	return []models.Template{
		{TemplateID: models.DefaultTemplateID, Name: "White", Content: whiteTemplate},
		{TemplateID: "BLACK", Name: "Black", Content: blackTemplate},
	}
}

// SeedTemplates stores every default template that does not exist yet.
// Existing templates are left untouched so edited copies survive a re-seed.
func SeedTemplates(db *gorm.DB) error {
	ctx := repositories.WithTx(context.Background(), db)
	events := repositories.NewEventRepository(repositories.NewEventItemRepository(db))

	var createdCount int
	var errorOccurred bool

	configslog.SLog.Info("Seeding invitation templates...")

	for _, tpl := range DefaultTemplates() {
		_, err := events.GetTemplate(ctx, tpl.TemplateID)
		if err == nil {
			configslog.SLog.Debugf("Template '%s' already exists, skipping.", tpl.TemplateID)
			continue
		} else if !errors.Is(err, repositories.ErrNotFound) {
			configslog.Log.Error("Template could not be checked",
				zap.String("template_id", tpl.TemplateID),
				zap.Error(err),
			)
			errorOccurred = true
			continue
		}

		if err := events.PutTemplate(ctx, &tpl); err != nil {
			configslog.Log.Error("Template could not be created",
				zap.String("template_id", tpl.TemplateID),
				zap.Error(err),
			)
			errorOccurred = true
			continue
		}
		configslog.SLog.Infof("Template '%s' created.", tpl.TemplateID)
		createdCount++
	}

	if createdCount > 0 {
		configslog.SLog.Infof("%d template(s) seeded.", createdCount)
	} else if !errorOccurred {
		configslog.SLog.Info("All templates already exist, nothing to add.")
	}

	if errorOccurred {
		return errors.New("at least one template could not be seeded")
	}
	return nil
}
