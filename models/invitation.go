package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTemplateID = "WHITE"
	DefaultUploadType = "csv"
	DefaultUploadBy   = "admin"
)

// Invitation is one recipient's record: snapshots, artifacts and lifecycle.
type Invitation struct {
	EventID      string `json:"-"`
	InvitationID string `json:"-"`

	Code     string            `json:"invitationCode"`
	Contact  Contact           `json:"invitationContact"`
	Event    EventSnapshot     `json:"eventDetails"`
	Template TemplateRef       `json:"invitationTemplate"`
	Data     InvitationData    `json:"invitationData"`
	Dates    map[string]string `json:"invitationDates,omitempty"`
	QR       *QRData           `json:"invitationQrData,omitempty"`
	Document *DocumentData     `json:"invitationHtmlEmail,omitempty"`
	Status   StatusBlock       `json:"invitationStatus"`
}

// Contact is the recipient snapshot stored on the invitation and its bundle.
type Contact struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	InvitationType string `json:"invitationType"`
}

// EventSnapshot copies the event core fields used for rendering.
type EventSnapshot struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Venue       string            `json:"venue,omitempty"`
	City        string            `json:"city,omitempty"`
	Country     string            `json:"country,omitempty"`
	StartDate   string            `json:"startDate,omitempty"`
	EndDate     string            `json:"endDate,omitempty"`
	LogoURL     string            `json:"logoUrl,omitempty"`
	WebsiteURL  string            `json:"websiteUrl,omitempty"`
	EventDates  map[string]string `json:"eventDates,omitempty"`
}

// Location joins the non-empty venue parts with ", ".
func (e EventSnapshot) Location() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Venue, e.City, e.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// TemplateRef points to a stored template plus per-batch overrides.
type TemplateRef struct {
	TemplateID   string            `json:"templateId"`
	CustomFields map[string]string `json:"customFields,omitempty"`
}

// ID returns the template id, falling back to the default template.
func (t TemplateRef) ID() string {
	if t.TemplateID == "" {
		return DefaultTemplateID
	}
	return t.TemplateID
}

// InvitationData holds quota and upload metadata.
type InvitationData struct {
	InvitationType  string    `json:"invitationType"`
	Bundle          string    `json:"bundle"`
	UploadBy        string    `json:"uploadBy"`
	UploadType      string    `json:"uploadType"`
	UploadTimestamp time.Time `json:"uploadTimestamp"`
}

// QRData is the scannable code: its random token and stored image.
type QRData struct {
	Token    string `json:"qrId"`
	ImageURL string `json:"qrImageUrl"`
	URI      string `json:"qrURI"`
}

// DocumentData locates the rendered HTML document.
type DocumentData struct {
	URL string `json:"emailHtmlUrl"`
	URI string `json:"emailHtmlURI"`
}

// Recipient is one row of a creation batch.
type Recipient struct {
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	InvitationType  string            `json:"invitationType"`
	Bundle          string            `json:"bundle"`
	InvitationDates map[string]string `json:"invitationDates,omitempty"`
	// TemplateID overrides the batch template for this recipient.
	TemplateID string `json:"templateId,omitempty"`
}

// Contact returns the snapshot stored for the recipient.
func (r Recipient) Contact() Contact {
	return Contact{Name: r.Name, Email: r.Email, InvitationType: r.InvitationType}
}

// UploadMetadata is shared by every recipient of one batch.
type UploadMetadata struct {
	UploadBy        string    `json:"uploadBy"`
	UploadType      string    `json:"uploadType"`
	UploadTimestamp time.Time `json:"uploadTimestamp"`
}

// WithDefaults fills unset metadata fields.
func (m UploadMetadata) WithDefaults(now time.Time) UploadMetadata {
	if m.UploadBy == "" {
		m.UploadBy = DefaultUploadBy
	}
	if m.UploadType == "" {
		m.UploadType = DefaultUploadType
	}
	if m.UploadTimestamp.IsZero() {
		m.UploadTimestamp = now
	}
	return m
}

// InvitationIDFor formats the sort key of the n-th invitation of an event.
func InvitationIDFor(n int) string {
	return fmt.Sprintf("%s%04d", InvitationIDPrefix, n)
}

// ParseInvitationIndex extracts N from "invitation#INV<N>". Only all-digit suffixes count.
func ParseInvitationIndex(operation string) (int, bool) {
	suffix, ok := strings.CutPrefix(operation, InvitationIDPrefix)
	if !ok || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}

// InvitationCode renders the human-readable code, e.g. EVENT#42#INV0007.
func InvitationCode(eventID, invitationID string) string {
	return fmt.Sprintf("EVENT#%s#%s",
		strings.TrimPrefix(eventID, "EVENT_"),
		strings.TrimPrefix(invitationID, InvitationOperation))
}

// JoinDates renders a date map as a comma-separated list ordered by key.
func JoinDates(dates map[string]string) string {
	if len(dates) == 0 {
		return ""
	}
	keys := make([]string, 0, len(dates))
	for k := range dates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, dates[k])
	}
	return strings.Join(values, ", ")
}
