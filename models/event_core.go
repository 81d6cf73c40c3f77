package models

// EventCore is the read-only (eventId, "core") record maintained by the event editor.
type EventCore struct {
	CoreData   CoreData          `json:"coreData"`
	CoreQuotes CoreQuotes        `json:"coreQuotes"`
	CoreStatus CoreStatus        `json:"coreStatus"`
	EventDates map[string]string `json:"coreEventDates"`
}

type CoreData struct {
	GeneralData GeneralData `json:"generalData"`
	VenueData   VenueData   `json:"venueData"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	CreatedBy   string      `json:"createdBy,omitempty"`
	ModifiedBy  string      `json:"modifiedBy,omitempty"`
}

type GeneralData struct {
	EventName   string `json:"eventName"`
	EventCode   string `json:"eventCode,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	WebsiteURL  string `json:"websiteUrl,omitempty"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

type VenueData struct {
	VenueName  string `json:"venueName"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode,omitempty"`
}

type CoreQuotes struct {
	InvitationsLimit int              `json:"invitationsLimits"`
	Quotes           map[string]Quota `json:"quotes,omitempty"`
}

type Quota struct {
	InvitationType string `json:"invitationType"`
	QuotaQuantity  int    `json:"quotaQuantity"`
	Color          string `json:"color,omitempty"`
	Description    string `json:"description,omitempty"`
}

type CoreStatus struct {
	Status string `json:"status"`
}

// IsEmpty reports a core record with no usable event data.
func (c EventCore) IsEmpty() bool {
	return c.CoreData.GeneralData.EventName == "" && c.CoreData.VenueData.VenueName == "" && c.CoreData.StartDate == ""
}

// Snapshot copies the fields invitations render from.
func (c EventCore) Snapshot() EventSnapshot {
	g, v := c.CoreData.GeneralData, c.CoreData.VenueData
	var dates map[string]string
	if len(c.EventDates) > 0 {
		dates = make(map[string]string, len(c.EventDates))
		for k, d := range c.EventDates {
			dates[k] = d
		}
	}
	return EventSnapshot{
		Name:        g.EventName,
		Description: g.Description,
		Venue:       v.VenueName,
		City:        v.City,
		Country:     v.Country,
		StartDate:   c.CoreData.StartDate,
		EndDate:     c.CoreData.EndDate,
		LogoURL:     g.LogoURL,
		WebsiteURL:  g.WebsiteURL,
		EventDates:  dates,
	}
}
