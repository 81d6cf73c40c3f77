package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/metrics"
	"invites.fest2.fun/repositories"

	"go.uber.org/zap"
)

// CheckIn is a wristband handed out at the door.
type CheckIn struct {
	WristbandID    string `json:"wristbandId"`
	InvitationID   string `json:"invitationId"`
	Name           string `json:"name"`
	InvitationType string `json:"invitationType"`
	ZoneID         int    `json:"zoneId"`
	PeopleQty      int    `json:"peopleQty"`

	// Repeated is set when the wristband already belonged to the invitation.
	Repeated bool `json:"repeated,omitempty"`
}

// ZoneAccessResult is the decision for one wristband at one zone gate.
type ZoneAccessResult struct {
	Granted     bool   `json:"granted"`
	Reason      string `json:"reason"`
	WristbandID string `json:"wristbandId"`
	FromZone    int    `json:"fromZone"`
	ZoneID      int    `json:"zoneId"`
	ZoneName    string `json:"zoneName,omitempty"`
}

// ZoneLoad is the occupancy of one zone.
type ZoneLoad struct {
	ZoneID         int    `json:"zoneId"`
	ZoneName       string `json:"zoneName"`
	MaxCapacity    int    `json:"maxCapacity"`
	PeopleInZone   int    `json:"peopleInZone"`
	AvailableSpots int    `json:"availableSpots"`
}

// ZoneOccupancy is the live view of every zone of an event.
type ZoneOccupancy struct {
	TotalPeople         int        `json:"totalPeople"`
	TotalAvailableSpots int        `json:"totalAvailableSpots"`
	Zones               []ZoneLoad `json:"zones"`
}

// CheckInService assigns wristbands and moves guests between zones. All writes
// go to the zones record with a conditional put, so several doors can share it.
type CheckInService struct {
	events     repositories.IEventRepository
	validation *ValidationService
	metrics    *metrics.Metrics
	attempts   uint
}

// NewCheckInService builds the door and zone gate flow over the event's zones record.
func NewCheckInService(deps Dependencies, validation *ValidationService) *CheckInService {
	return &CheckInService{
		events:     deps.Events,
		validation: validation,
		metrics:    deps.Metrics,
		attempts:   defaultConflictAttempts,
	}
}

func (c *CheckInService) loadZones(ctx context.Context, eventID string) (*models.ZonesValidation, int64, error) {
	zones, version, err := c.events.GetZones(ctx, eventID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, 0, fmt.Errorf("%w: %s", ErrZonesNotConfigured, eventID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read zones of %s: %w", eventID, err)
	}
	return zones, version, nil
}

func (c *CheckInService) write(ctx context.Context, eventID string, fn func() error) error {
	err := retryOnConflict(ctx, c.attempts, c.metrics.AggregationConflicts.Inc, fn)
	if errors.Is(err, repositories.ErrVersionConflict) {
		return fmt.Errorf("%w: %s/%s: %w", ErrAggregationConflict, eventID, models.OperationZones, err)
	}
	return err
}

// AssignWristband checks in the invitation holding token: the wristband is
// recorded in the entrance zone and the people counts grow by one. Assigning
// the same wristband to the same invitation again changes nothing.
func (c *CheckInService) AssignWristband(ctx context.Context, eventID, token, wristbandID string) (*CheckIn, error) {
	wristbandID = strings.TrimSpace(wristbandID)
	if wristbandID == "" {
		return nil, fmt.Errorf("%w: wristband id is required", ErrValidation)
	}
	inv, err := c.validation.findByToken(ctx, eventID, token)
	if err != nil {
		return nil, err
	}
	if reason := admissionRejection(inv); reason != "" {
		c.metrics.CheckIns.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s: %s", ErrCheckInRejected, inv.InvitationID, reason)
	}

	var out *CheckIn
	err = c.write(ctx, eventID, func() error {
		zones, version, err := c.loadZones(ctx, eventID)
		if err != nil {
			return err
		}
		if held, ok := zones.BandWrists[wristbandID]; ok {
			if held.InvitationID != inv.InvitationID {
				return fmt.Errorf("%w: wristband %s is assigned to %s", ErrCheckInRejected, wristbandID, held.InvitationID)
			}
			out = checkInOf(wristbandID, held, zones)
			out.Repeated = true
			return nil
		}
		if other, ok := zones.WristbandOf(inv.InvitationID); ok {
			return fmt.Errorf("%w: %s already wears wristband %s", ErrCheckInRejected, inv.InvitationID, other)
		}
		access := models.ZoneAccess{
			InvitationID:   inv.InvitationID,
			Name:           inv.Contact.Name,
			InvitationType: inv.Contact.InvitationType,
		}
		zones.CheckIn(wristbandID, access)
		if _, err := c.events.SaveZones(ctx, eventID, zones, version); err != nil {
			return err
		}
		out = checkInOf(wristbandID, zones.BandWrists[wristbandID], zones)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCheckInRejected) {
			c.metrics.CheckIns.WithLabelValues("rejected").Inc()
		}
		return nil, err
	}

	if !out.Repeated {
		c.metrics.CheckIns.WithLabelValues("assigned").Inc()
		configslog.Log.Info("Wristband assigned",
			zap.String("eventId", eventID), zap.String("invitationId", inv.InvitationID),
			zap.String("wristbandId", wristbandID), zap.Int("peopleQty", out.PeopleQty))
	}
	return out, nil
}

func checkInOf(wristbandID string, access models.ZoneAccess, zones *models.ZonesValidation) *CheckIn {
	return &CheckIn{
		WristbandID:    wristbandID,
		InvitationID:   access.InvitationID,
		Name:           access.Name,
		InvitationType: access.InvitationType,
		ZoneID:         access.ZoneID,
		PeopleQty:      zones.MetadataZones.PeopleQty,
	}
}

// CheckZoneAccess decides whether a wristband may enter zoneID and, when
// granted, moves its guest there. Guests only move between the entrance and
// one other zone; the zone must admit the invitation type and have room.
// A denial is a result, not an error.
func (c *CheckInService) CheckZoneAccess(ctx context.Context, eventID, wristbandID string, zoneID int) (*ZoneAccessResult, error) {
	wristbandID = strings.TrimSpace(wristbandID)
	if eventID == "" || wristbandID == "" {
		return nil, fmt.Errorf("%w: event id and wristband id are required", ErrValidation)
	}

	var out *ZoneAccessResult
	err := c.write(ctx, eventID, func() error {
		zones, version, err := c.loadZones(ctx, eventID)
		if err != nil {
			return err
		}
		res := &ZoneAccessResult{WristbandID: wristbandID, ZoneID: zoneID}
		out = res
		access, ok := zones.BandWrists[wristbandID]
		if !ok {
			res.Reason = "wristband was never assigned"
			return nil
		}
		res.FromZone = access.ZoneID
		zone, ok := zones.Zones[zoneID]
		if !ok {
			res.Reason = fmt.Sprintf("zone %d does not exist", zoneID)
			return nil
		}
		res.ZoneName = zone.Name
		switch {
		case access.ZoneID == zoneID:
			res.Granted, res.Reason = true, "already in "+zone.Name
			return nil
		case !models.CanMove(access.ZoneID, zoneID):
			res.Reason = fmt.Sprintf("cannot move from zone %d to zone %d", access.ZoneID, zoneID)
			return nil
		case !zone.Admits(access.InvitationType):
			res.Reason = fmt.Sprintf("%s invitations are not allowed in %s", access.InvitationType, zone.Name)
			return nil
		case zone.Available(zones.People(zoneID)) == 0:
			res.Reason = zone.Name + " is at maximum capacity"
			return nil
		}

		zones.Move(wristbandID, zoneID)
		if _, err := c.events.SaveZones(ctx, eventID, zones, version); err != nil {
			return err
		}
		res.Granted, res.Reason = true, "access granted to "+zone.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := "denied"
	if out.Granted {
		result = "granted"
	}
	c.metrics.ZoneAccess.WithLabelValues(result).Inc()
	configslog.Log.Debug("Zone access decided",
		zap.String("eventId", eventID), zap.String("wristbandId", wristbandID),
		zap.Int("zoneId", zoneID), zap.Bool("granted", out.Granted), zap.String("reason", out.Reason))
	return out, nil
}

// ZoneOccupancy reports people and free spots per zone, ordered by zone id.
func (c *CheckInService) ZoneOccupancy(ctx context.Context, eventID string) (*ZoneOccupancy, error) {
	zones, _, err := c.loadZones(ctx, eventID)
	if err != nil {
		return nil, err
	}
	out := &ZoneOccupancy{TotalPeople: zones.MetadataZones.PeopleQty, Zones: make([]ZoneLoad, 0, len(zones.Zones))}
	for id, zone := range zones.Zones {
		people := zones.People(id)
		load := ZoneLoad{
			ZoneID:         id,
			ZoneName:       zone.Name,
			MaxCapacity:    zone.MaxCapacity,
			PeopleInZone:   people,
			AvailableSpots: zone.Available(people),
		}
		out.TotalAvailableSpots += load.AvailableSpots
		out.Zones = append(out.Zones, load)
	}
	sort.Slice(out.Zones, func(i, j int) bool { return out.Zones[i].ZoneID < out.Zones[j].ZoneID })
	return out, nil
}

// ConfigureZones replaces the zone definitions of an event, creating the
// record when absent. Assigned wristbands and counts are kept; a zone that
// still has people in it cannot be removed.
func (c *CheckInService) ConfigureZones(ctx context.Context, eventID string, defs []models.Zone) (*models.ZonesValidation, error) {
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	configured, err := normalizeZones(defs)
	if err != nil {
		return nil, err
	}

	var out *models.ZonesValidation
	err = c.write(ctx, eventID, func() error {
		zones, version, err := c.events.GetZones(ctx, eventID)
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			zones, version = &models.ZonesValidation{}, 0
		case err != nil:
			return fmt.Errorf("read zones of %s: %w", eventID, err)
		}
		for id, people := range zones.MetadataZones.PeopleByZone {
			if _, kept := configured[id]; !kept && people > 0 {
				return fmt.Errorf("%w: zone %d still holds %d people", ErrValidation, id, people)
			}
		}
		zones.Zones = configured
		if _, err := c.events.SaveZones(ctx, eventID, zones, version); err != nil {
			return err
		}
		out = zones
		return nil
	})
	if err != nil {
		return nil, err
	}
	configslog.Log.Info("Zones configured", zap.String("eventId", eventID), zap.Int("zones", len(configured)))
	return out, nil
}

func normalizeZones(defs []models.Zone) (map[int]models.Zone, error) {
	out := make(map[int]models.Zone, len(defs))
	for i, zone := range defs {
		zone.Name = strings.TrimSpace(zone.Name)
		switch {
		case zone.ID < 0:
			return nil, fmt.Errorf("%w: zone %d: id must not be negative", ErrValidation, i)
		case zone.Name == "":
			return nil, fmt.Errorf("%w: zone %d: name is required", ErrValidation, i)
		case zone.MaxCapacity <= 0:
			return nil, fmt.Errorf("%w: zone %d: maxCapacity must be positive", ErrValidation, i)
		}
		if _, dup := out[zone.ID]; dup {
			return nil, fmt.Errorf("%w: zone id %d is repeated", ErrValidation, zone.ID)
		}
		types := make(map[string]bool, len(zone.AllowedTypes))
		for t, allowed := range zone.AllowedTypes {
			if allowed {
				types[strings.ToUpper(strings.TrimSpace(t))] = true
			}
		}
		zone.AllowedTypes = types
		out[zone.ID] = zone
	}
	if _, ok := out[models.EntranceZone]; !ok {
		return nil, fmt.Errorf("%w: the entrance zone %d is required", ErrValidation, models.EntranceZone)
	}
	return out, nil
}
