package services

import (
	"errors"

	"invites.fest2.fun/pkg/objectstore"
	"invites.fest2.fun/repositories"
)

// InvitationServiceError is a sentinel returned (wrapped) by the invitation services.
type InvitationServiceError string

func (e InvitationServiceError) Error() string { return string(e) }

const (
	ErrValidation            InvitationServiceError = "invalid input"
	ErrEventNotFound         InvitationServiceError = "event not found"
	ErrTemplateNotFound      InvitationServiceError = "template not found"
	ErrInvitationNotFound    InvitationServiceError = "invitation not found"
	ErrBundleSummaryNotFound InvitationServiceError = "bundles summary not found"
	ErrVerification          InvitationServiceError = "stored record could not be verified"
	ErrInvalidTransition     InvitationServiceError = "transition not allowed"
	ErrNotCreated            InvitationServiceError = "invitation was never created"
	ErrMissingArtifact       InvitationServiceError = "invitation has no stored document"
	ErrAggregationConflict   InvitationServiceError = "aggregate record kept changing concurrently"
	ErrSequenceRead          InvitationServiceError = "invitation sequence could not be read"
	ErrZonesNotConfigured    InvitationServiceError = "event zones are not configured"
	ErrCheckInRejected       InvitationServiceError = "invitation cannot be checked in"
)

// IsNotFound reports whether err means a referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrInvitationNotFound) ||
		errors.Is(err, ErrBundleSummaryNotFound) ||
		errors.Is(err, ErrZonesNotConfigured) ||
		errors.Is(err, repositories.ErrNotFound)
}

// IsTransient reports whether err came from an external store after retries.
func IsTransient(err error) bool {
	return errors.Is(err, objectstore.ErrUploadFailed)
}

// Failure describes one unit of a batch that did not complete.
type Failure struct {
	Index        int    `json:"index"`
	InvitationID string `json:"invitationId,omitempty"`
	Email        string `json:"email,omitempty"`
	Error        string `json:"error"`
}
