package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/objectstore"
	"invites.fest2.fun/pkg/qr"
	"invites.fest2.fun/pkg/renderer"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

const htmlContentType = "text/html; charset=utf-8"

// QRKey is the object key of an invitation's code image.
func QRKey(prefix, eventID, invitationID string) string {
	return path.Join(prefix, eventID, "qrImages", objectName(invitationID)+".png")
}

// DocumentKey is the object key of an invitation's rendered HTML.
func DocumentKey(prefix, eventID, invitationID string) string {
	return path.Join(prefix, eventID, "emailHTML", objectName(invitationID)+".html")
}

// objectName drops the "invitation#" prefix so keys stay URL friendly.
func objectName(invitationID string) string {
	return strings.TrimPrefix(invitationID, models.InvitationOperation)
}

// PipelineInput is one unit of work for the artifact pipeline.
type PipelineInput struct {
	EventID      string
	InvitationID string
	Index        int
	Recipient    models.Recipient
	Event        models.EventSnapshot
	Template     models.TemplateRef
	Metadata     models.UploadMetadata
}

// PipelineResult locates the artifacts of a created invitation.
type PipelineResult struct {
	InvitationID string
	Index        int
	Contact      models.Contact
	Bundle       string
	QR           objectstore.Artifact
	Document     objectstore.Artifact
}

// ArtifactPipeline turns one recipient into a persisted invitation with a code image
// and a rendered document. Steps run strictly in order and stop at the first error.
type ArtifactPipeline struct {
	events         repositories.IEventRepository
	objects        *objectstore.Client
	encoder        qr.Encoder
	renderer       renderer.Renderer
	keyPrefix      string
	defaultLogoURL string
	now            func() time.Time
}

// NewArtifactPipeline builds the QR, render and upload steps from deps.
func NewArtifactPipeline(deps Dependencies) *ArtifactPipeline {
	return &ArtifactPipeline{
		events:         deps.Events,
		objects:        deps.Objects,
		encoder:        deps.Encoder,
		renderer:       deps.Renderer,
		keyPrefix:      deps.KeyPrefix,
		defaultLogoURL: deps.DefaultLogoURL,
		now:            deps.clock(),
	}
}

// Process runs every step for one recipient. On error the invitation may exist
// in storage, but it is never stamped CREATED.
func (p *ArtifactPipeline) Process(ctx context.Context, in PipelineInput) (*PipelineResult, error) {
	log := configslog.Log.With(zap.String("eventId", in.EventID), zap.String("invitationId", in.InvitationID))
	contact := in.Recipient.Contact()

	inv := &models.Invitation{
		EventID:      in.EventID,
		InvitationID: in.InvitationID,
		Code:         models.InvitationCode(in.EventID, in.InvitationID),
		Contact:      contact,
		Event:        in.Event,
		Template:     in.Template,
		Dates:        in.Recipient.InvitationDates,
		Data: models.InvitationData{
			InvitationType:  contact.InvitationType,
			Bundle:          in.Recipient.Bundle,
			UploadBy:        in.Metadata.UploadBy,
			UploadType:      in.Metadata.UploadType,
			UploadTimestamp: in.Metadata.UploadTimestamp,
		},
	}
	if in.Recipient.TemplateID != "" {
		inv.Template.TemplateID = in.Recipient.TemplateID
	}

	// 1. persist the payload and confirm it landed
	if _, err := p.events.PutInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("persist invitation %s: %w", in.InvitationID, err)
	}
	if err := p.verify(ctx, inv, false); err != nil {
		return nil, err
	}
	log.Debug("Invitation payload persisted")

	// 2. random token, never the invitation id
	token := qr.NewToken()
	image, err := p.encoder.Encode(token)
	if err != nil {
		return nil, fmt.Errorf("encode code for %s: %w", in.InvitationID, err)
	}

	// 3. code image
	qrArt, err := p.objects.Upload(ctx, image, QRKey(p.keyPrefix, in.EventID, in.InvitationID), p.encoder.ContentType())
	if err != nil {
		return nil, err
	}
	inv.QR = &models.QRData{Token: token, ImageURL: qrArt.URL, URI: qrArt.URI}

	// 4. document
	docArt, err := p.renderAndUpload(ctx, inv)
	if err != nil {
		return nil, err
	}
	inv.Document = &models.DocumentData{URL: docArt.URL, URI: docArt.URI}

	// 5. mark created, persist, confirm
	inv.Status.Stamp(models.StateCreated, in.Metadata.UploadBy, in.Metadata.UploadType, p.now())
	if _, err := p.events.PutInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("persist created invitation %s: %w", in.InvitationID, err)
	}
	if err := p.verify(ctx, inv, true); err != nil {
		return nil, err
	}
	log.Debug("Invitation created", zap.String("qrUri", qrArt.URI), zap.String("documentUri", docArt.URI))

	return &PipelineResult{
		InvitationID: in.InvitationID,
		Index:        in.Index,
		Contact:      contact,
		Bundle:       in.Recipient.Bundle,
		QR:           qrArt,
		Document:     docArt,
	}, nil
}

// Rerender renders the invitation's document again with its current data and
// existing code image, and uploads it over the previous document.
func (p *ArtifactPipeline) Rerender(ctx context.Context, inv *models.Invitation) (objectstore.Artifact, error) {
	if inv.QR == nil {
		return objectstore.Artifact{}, fmt.Errorf("%w: %s has no code image", ErrMissingArtifact, inv.InvitationID)
	}
	return p.renderAndUpload(ctx, inv)
}

func (p *ArtifactPipeline) renderAndUpload(ctx context.Context, inv *models.Invitation) (objectstore.Artifact, error) {
	templateID := inv.Template.ID()
	tpl, err := p.events.GetTemplate(ctx, templateID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return objectstore.Artifact{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return objectstore.Artifact{}, fmt.Errorf("load template %s: %w", templateID, err)
	}

	qrURL := ""
	if inv.QR != nil {
		qrURL = inv.QR.ImageURL
	}
	html, err := p.renderer.Render(templateID, tpl.Content, RenderVariables(inv, qrURL, p.defaultLogoURL))
	if err != nil {
		return objectstore.Artifact{}, fmt.Errorf("render %s with %s: %w", inv.InvitationID, templateID, err)
	}
	return p.objects.Upload(ctx, html, DocumentKey(p.keyPrefix, inv.EventID, inv.InvitationID), htmlContentType)
}

func (p *ArtifactPipeline) verify(ctx context.Context, want *models.Invitation, created bool) error {
	got, _, err := p.events.GetInvitation(ctx, want.EventID, want.InvitationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: %s/%s missing after write", ErrVerification, want.EventID, want.InvitationID)
		}
		return fmt.Errorf("verify %s: %w", want.InvitationID, err)
	}
	if created && !got.Status.IsCreated() {
		return fmt.Errorf("%w: %s/%s not marked CREATED after write", ErrVerification, want.EventID, want.InvitationID)
	}
	return nil
}

// RenderVariables builds the template variables of an invitation. Template custom
// fields override event-derived values and may add variables of their own.
func RenderVariables(inv *models.Invitation, qrURL, defaultLogoURL string) map[string]string {
	custom := inv.Template.CustomFields
	pick := func(key, fallback string) string {
		if v, ok := custom[key]; ok && v != "" {
			return v
		}
		return fallback
	}
	logo := inv.Event.LogoURL
	if logo == "" {
		logo = defaultLogoURL
	}

	vars := map[string]string{
		"contactName":      inv.Contact.Name,
		"contactEmail":     inv.Contact.Email,
		"invitationType":   inv.Contact.InvitationType,
		"invitationCode":   inv.Code,
		"eventName":        pick("eventName", inv.Event.Name),
		"eventDates":       models.JoinDates(inv.Event.EventDates),
		"invitationDates":  models.JoinDates(inv.Dates),
		"eventLocation":    pick("eventLocation", inv.Event.Location()),
		"eventDescription": pick("eventDescription", inv.Event.Description),
		"logoUrl":          pick("logoUrl", logo),
		"qrCodeImage":      qrURL,
	}
	for k, v := range custom {
		if _, taken := vars[k]; !taken {
			vars[k] = v
		}
	}
	return vars
}
