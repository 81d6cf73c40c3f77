package models

// EntranceZone is where every guest lands at check-in. Guests move between the
// entrance and one other zone at a time.
const EntranceZone = 0

// ZonesValidation is the (eventId, "zonesValidation") check-in record: the
// configured zones, every assigned wristband and the people counts.
type ZonesValidation struct {
	MetadataZones ZonesMetadata         `json:"metadataZones"`
	Zones         map[int]Zone          `json:"zones,omitempty"`
	BandWrists    map[string]ZoneAccess `json:"bandWristIds,omitempty"`
}

// ZonesMetadata holds the people counts. PeopleQty is always the sum of PeopleByZone.
type ZonesMetadata struct {
	PeopleQty    int         `json:"peopleQty"`
	PeopleByZone map[int]int `json:"peopleByZone,omitempty"`
}

// Zone is one area of the venue.
type Zone struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	MaxCapacity int    `json:"maxCapacity"`

	// AllowedTypes lists the invitation types admitted. Empty admits every type.
	AllowedTypes map[string]bool `json:"allowedTypes,omitempty"`
}

// Admits reports whether guests with invitationType may enter.
func (z Zone) Admits(invitationType string) bool {
	return len(z.AllowedTypes) == 0 || z.AllowedTypes[invitationType]
}

// Available is the number of free spots left with people inside.
func (z Zone) Available(people int) int {
	return max(0, z.MaxCapacity-people)
}

// ZoneAccess is one assigned wristband and where its guest currently is.
type ZoneAccess struct {
	ZoneID         int    `json:"zoneId"`
	InvitationID   string `json:"invitationId,omitempty"`
	Name           string `json:"name,omitempty"`
	InvitationType string `json:"type,omitempty"`
}

// CanMove reports whether a guest may go straight from one zone to another.
func CanMove(from, to int) bool {
	return (from == EntranceZone) != (to == EntranceZone)
}

// People returns how many guests are in zone.
func (v *ZonesValidation) People(zone int) int {
	return v.MetadataZones.PeopleByZone[zone]
}

// WristbandOf returns the wristband assigned to an invitation, if any.
func (v *ZonesValidation) WristbandOf(invitationID string) (string, bool) {
	for id, access := range v.BandWrists {
		if access.InvitationID == invitationID {
			return id, true
		}
	}
	return "", false
}

// CheckIn assigns a wristband and places its guest in the entrance zone.
func (v *ZonesValidation) CheckIn(wristbandID string, access ZoneAccess) {
	if v.BandWrists == nil {
		v.BandWrists = make(map[string]ZoneAccess)
	}
	access.ZoneID = EntranceZone
	v.BandWrists[wristbandID] = access
	v.adjust(EntranceZone, 1)
}

// Move relocates a checked-in guest. Callers check CanMove and capacity first.
func (v *ZonesValidation) Move(wristbandID string, to int) {
	access, ok := v.BandWrists[wristbandID]
	if !ok || access.ZoneID == to {
		return
	}
	v.adjust(access.ZoneID, -1)
	v.adjust(to, 1)
	access.ZoneID = to
	v.BandWrists[wristbandID] = access
}

func (v *ZonesValidation) adjust(zone, n int) {
	if v.MetadataZones.PeopleByZone == nil {
		v.MetadataZones.PeopleByZone = make(map[int]int)
	}
	v.MetadataZones.PeopleByZone[zone] = max(0, v.MetadataZones.PeopleByZone[zone]+n)
	total := 0
	for _, n := range v.MetadataZones.PeopleByZone {
		total += n
	}
	v.MetadataZones.PeopleQty = total
}
