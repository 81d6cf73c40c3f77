package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

// CodeValidation is what a door scanner learns from a code token.
type CodeValidation struct {
	Valid          bool                   `json:"valid"`
	Reason         string                 `json:"reason,omitempty"`
	InvitationID   string                 `json:"invitationId"`
	InvitationCode string                 `json:"invitationCode"`
	Name           string                 `json:"name"`
	Email          string                 `json:"email"`
	InvitationType string                 `json:"invitationType"`
	Bundle         string                 `json:"bundle"`
	Status         models.InvitationState `json:"status"`
	Dates          map[string]string      `json:"invitationDates,omitempty"`
	Zones          []int                  `json:"zones,omitempty"`
}

// ValidationService resolves scanned code tokens to invitations.
type ValidationService struct {
	events repositories.IEventRepository
}

// NewValidationService builds the code lookup over events.
func NewValidationService(events repositories.IEventRepository) *ValidationService {
	return &ValidationService{events: events}
}

// ValidateCode finds the invitation holding token. Revoked and never-created
// invitations are returned with Valid=false and a reason.
func (v *ValidationService) ValidateCode(ctx context.Context, eventID, token string) (*CodeValidation, error) {
	inv, err := v.findByToken(ctx, eventID, token)
	if err != nil {
		return nil, err
	}

	out := &CodeValidation{
		Valid:          true,
		InvitationID:   inv.InvitationID,
		InvitationCode: inv.Code,
		Name:           inv.Contact.Name,
		Email:          inv.Contact.Email,
		InvitationType: inv.Contact.InvitationType,
		Bundle:         inv.Data.Bundle,
		Status:         inv.Status.Current,
		Dates:          inv.Dates,
		Zones:          v.zonesOf(ctx, eventID, inv.InvitationID),
	}
	if reason := admissionRejection(inv); reason != "" {
		out.Valid, out.Reason = false, reason
	}
	return out, nil
}

func (v *ValidationService) findByToken(ctx context.Context, eventID, token string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if eventID == "" || token == "" {
		return nil, fmt.Errorf("%w: event id and token are required", ErrValidation)
	}
	invitations, err := v.events.ListInvitations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list invitations of %s: %w", eventID, err)
	}
	for _, candidate := range invitations {
		if candidate.QR != nil && candidate.QR.Token == token {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("%w: no invitation of %s holds that code", ErrInvitationNotFound, eventID)
}

// admissionRejection is empty when the invitation may enter the event.
func admissionRejection(inv *models.Invitation) string {
	switch {
	case !inv.Status.IsCreated():
		return "invitation was never created"
	case inv.Status.Current == models.StateRevoked:
		return "invitation was revoked"
	}
	return ""
}

// zonesOf lists the zones whose wristbands were assigned to the invitation.
// The zones record is optional, so read failures only log.
func (v *ValidationService) zonesOf(ctx context.Context, eventID, invitationID string) []int {
	zones, _, err := v.events.GetZones(ctx, eventID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			configslog.Log.Warn("Zones record could not be read", zap.String("eventId", eventID), zap.Error(err))
		}
		return nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, access := range zones.BandWrists {
		if access.InvitationID == invitationID && !seen[access.ZoneID] {
			seen[access.ZoneID] = true
			out = append(out, access.ZoneID)
		}
	}
	sort.Ints(out)
	return out
}
