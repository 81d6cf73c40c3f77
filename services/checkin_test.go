package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"invites.fest2.fun/models"
)

func testZones() []models.Zone {
	return []models.Zone{
		{ID: models.EntranceZone, Name: "Entrance", MaxCapacity: 100},
		{ID: 1, Name: "VIP Lounge", MaxCapacity: 1, AllowedTypes: map[string]bool{"vip": true}},
		{ID: 2, Name: "Main Stage", MaxCapacity: 50},
	}
}

func (h *harness) configureZones(t *testing.T) {
	t.Helper()
	if _, err := h.svc.ConfigureZones(context.Background(), testEvent, testZones()); err != nil {
		t.Fatalf("ConfigureZones error = %v", err)
	}
}

func (h *harness) token(t *testing.T, invitationID string) string {
	t.Helper()
	inv, err := h.svc.GetInvitation(context.Background(), testEvent, invitationID)
	if err != nil {
		t.Fatalf("GetInvitation error = %v", err)
	}
	return inv.QR.Token
}

func (h *harness) checkIn(t *testing.T, invitationID, wristbandID string) *CheckIn {
	t.Helper()
	out, err := h.svc.AssignWristband(context.Background(), testEvent, h.token(t, invitationID), wristbandID)
	if err != nil {
		t.Fatalf("AssignWristband(%s) error = %v", wristbandID, err)
	}
	return out
}

func TestAssignWristbandNeedsZones(t *testing.T) {
	h := newHarness(t)
	id := h.create(t, vip("Ada", "B1")).InvitationIDs[0]

	_, err := h.svc.AssignWristband(context.Background(), testEvent, h.token(t, id), "W1")
	if !errors.Is(err, ErrZonesNotConfigured) || !IsNotFound(err) {
		t.Fatalf("err = %v, want ErrZonesNotConfigured", err)
	}
}

func TestAssignWristband(t *testing.T) {
	h := newHarness(t)
	ids := h.create(t, vip("Ada", "B1"), general("Bob", "B1"), general("Cy", "B1")).InvitationIDs
	h.configureZones(t)

	got := h.checkIn(t, ids[0], "W1")
	if got.ZoneID != models.EntranceZone || got.PeopleQty != 1 || got.Name != "Ada" || got.InvitationType != "VIP" || got.Repeated {
		t.Fatalf("check-in = %+v", got)
	}
	if again := h.checkIn(t, ids[0], "W1"); !again.Repeated || again.PeopleQty != 1 {
		t.Fatalf("repeated check-in = %+v, want unchanged", again)
	}

	ctx := context.Background()
	if _, err := h.svc.AssignWristband(ctx, testEvent, h.token(t, ids[1]), "W1"); !errors.Is(err, ErrCheckInRejected) {
		t.Fatalf("taken wristband err = %v, want ErrCheckInRejected", err)
	}
	if _, err := h.svc.AssignWristband(ctx, testEvent, h.token(t, ids[0]), "W9"); !errors.Is(err, ErrCheckInRejected) {
		t.Fatalf("second wristband err = %v, want ErrCheckInRejected", err)
	}
	if _, err := h.svc.AssignWristband(ctx, testEvent, h.token(t, ids[1]), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank wristband err = %v, want ErrValidation", err)
	}

	h.transition(t, "REVOKED", ids[2])
	if _, err := h.svc.AssignWristband(ctx, testEvent, h.token(t, ids[2]), "W3"); !errors.Is(err, ErrCheckInRejected) {
		t.Fatalf("revoked err = %v, want ErrCheckInRejected", err)
	}

	zones, _, err := h.events.GetZones(ctx, testEvent)
	if err != nil {
		t.Fatalf("GetZones error = %v", err)
	}
	if zones.MetadataZones.PeopleQty != 1 || len(zones.BandWrists) != 1 || zones.BandWrists["W1"].InvitationID != ids[0] {
		t.Fatalf("zones = %+v", zones)
	}

	validation, err := h.svc.ValidateCode(ctx, testEvent, h.token(t, ids[0]))
	if err != nil || len(validation.Zones) != 1 || validation.Zones[0] != models.EntranceZone {
		t.Fatalf("validation zones = %+v, %v", validation, err)
	}
}

func TestConcurrentCheckInsAreAllCounted(t *testing.T) {
	h := newHarness(t)
	recipients := make([]models.Recipient, 6)
	for i := range recipients {
		recipients[i] = general(fmt.Sprintf("Guest%d", i), "B1")
	}
	ids := h.create(t, recipients...).InvitationIDs
	h.configureZones(t)

	tokens := make([]string, len(ids))
	for i, id := range ids {
		tokens[i] = h.token(t, id)
	}
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.AssignWristband(context.Background(), testEvent, tokens[i], fmt.Sprintf("W%d", i))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("check-in %d error = %v", i, err)
		}
	}

	occupancy, err := h.svc.ZoneOccupancy(context.Background(), testEvent)
	if err != nil {
		t.Fatalf("ZoneOccupancy error = %v", err)
	}
	if occupancy.TotalPeople != len(ids) || occupancy.Zones[0].PeopleInZone != len(ids) {
		t.Fatalf("occupancy = %+v, want %d at the entrance", occupancy, len(ids))
	}
}

func TestCheckZoneAccess(t *testing.T) {
	h := newHarness(t)
	ids := h.create(t, vip("Ada", "B1"), vip("Bea", "B1"), general("Bob", "B1")).InvitationIDs
	h.configureZones(t)
	h.checkIn(t, ids[0], "W-ADA")
	h.checkIn(t, ids[1], "W-BEA")
	h.checkIn(t, ids[2], "W-BOB")

	steps := []struct {
		name      string
		wristband string
		zone      int
		granted   bool
		reason    string
	}{
		{"unknown wristband", "W-NONE", 1, false, "wristband was never assigned"},
		{"unknown zone", "W-ADA", 9, false, "zone 9 does not exist"},
		{"type not admitted", "W-BOB", 1, false, "GENERAL invitations are not allowed in VIP Lounge"},
		{"vip enters lounge", "W-ADA", 1, true, "access granted to VIP Lounge"},
		{"already inside", "W-ADA", 1, true, "already in VIP Lounge"},
		{"lounge is full", "W-BEA", 1, false, "VIP Lounge is at maximum capacity"},
		{"no move between inner zones", "W-ADA", 2, false, "cannot move from zone 1 to zone 2"},
		{"back to the entrance", "W-ADA", models.EntranceZone, true, "access granted to Entrance"},
		{"room freed", "W-BEA", 1, true, "access granted to VIP Lounge"},
		{"general to the stage", "W-BOB", 2, true, "access granted to Main Stage"},
	}
	for _, step := range steps {
		res, err := h.svc.CheckZoneAccess(context.Background(), testEvent, step.wristband, step.zone)
		if err != nil {
			t.Fatalf("%s: CheckZoneAccess error = %v", step.name, err)
		}
		if res.Granted != step.granted || res.Reason != step.reason {
			t.Fatalf("%s: result = %+v, want granted=%v reason=%q", step.name, res, step.granted, step.reason)
		}
	}

	occupancy, err := h.svc.ZoneOccupancy(context.Background(), testEvent)
	if err != nil {
		t.Fatalf("ZoneOccupancy error = %v", err)
	}
	want := []ZoneLoad{
		{ZoneID: 0, ZoneName: "Entrance", MaxCapacity: 100, PeopleInZone: 1, AvailableSpots: 99},
		{ZoneID: 1, ZoneName: "VIP Lounge", MaxCapacity: 1, PeopleInZone: 1, AvailableSpots: 0},
		{ZoneID: 2, ZoneName: "Main Stage", MaxCapacity: 50, PeopleInZone: 1, AvailableSpots: 49},
	}
	if occupancy.TotalPeople != 3 || occupancy.TotalAvailableSpots != 148 || len(occupancy.Zones) != len(want) {
		t.Fatalf("occupancy = %+v", occupancy)
	}
	for i, load := range want {
		if occupancy.Zones[i] != load {
			t.Fatalf("zone %d = %+v, want %+v", i, occupancy.Zones[i], load)
		}
	}
}

func TestCheckZoneAccessNeedsZones(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.CheckZoneAccess(context.Background(), testEvent, "W1", 1); !errors.Is(err, ErrZonesNotConfigured) {
		t.Fatalf("err = %v, want ErrZonesNotConfigured", err)
	}
	if _, err := h.svc.ZoneOccupancy(context.Background(), testEvent); !errors.Is(err, ErrZonesNotConfigured) {
		t.Fatalf("occupancy err = %v, want ErrZonesNotConfigured", err)
	}
}

func TestConfigureZones(t *testing.T) {
	h := newHarness(t)
	ids := h.create(t, vip("Ada", "B1")).InvitationIDs
	h.configureZones(t)
	h.checkIn(t, ids[0], "W1")
	if res, _ := h.svc.CheckZoneAccess(context.Background(), testEvent, "W1", 1); !res.Granted {
		t.Fatalf("lounge access = %+v", res)
	}

	ctx := context.Background()
	invalid := []struct {
		name  string
		zones []models.Zone
	}{
		{"no entrance", []models.Zone{{ID: 1, Name: "Lounge", MaxCapacity: 5}}},
		{"repeated id", []models.Zone{{ID: 0, Name: "A", MaxCapacity: 5}, {ID: 0, Name: "B", MaxCapacity: 5}}},
		{"no capacity", []models.Zone{{ID: 0, Name: "Entrance"}}},
		{"no name", []models.Zone{{ID: 0, MaxCapacity: 5}}},
		{"occupied zone removed", []models.Zone{{ID: 0, Name: "Entrance", MaxCapacity: 5}}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.svc.ConfigureZones(ctx, testEvent, tt.zones); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	updated := testZones()
	updated[1].MaxCapacity = 10
	updated = updated[:2]
	zones, err := h.svc.ConfigureZones(ctx, testEvent, updated)
	if err != nil {
		t.Fatalf("ConfigureZones error = %v", err)
	}
	if len(zones.Zones) != 2 || zones.Zones[1].MaxCapacity != 10 || !zones.Zones[1].AllowedTypes["VIP"] {
		t.Fatalf("zones = %+v", zones.Zones)
	}
	if zones.BandWrists["W1"].ZoneID != 1 || zones.People(1) != 1 || zones.MetadataZones.PeopleQty != 1 {
		t.Fatalf("reconfigure lost the guests: %+v", zones)
	}
}
