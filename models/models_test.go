package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseInvitationIndex(t *testing.T) {
	tests := []struct {
		operation string
		want      int
		ok        bool
	}{
		{"invitation#INV0001", 1, true},
		{"invitation#INV0420", 420, true},
		{"invitation#INV12345", 12345, true},
		{"invitation#INV", 0, false},
		{"invitation#INV00a1", 0, false},
		{"invitation#XYZ0001", 0, false},
		{"bundle#VIP", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInvitationIndex(tt.operation)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("ParseInvitationIndex(%q) = (%d, %v), want (%d, %v)", tt.operation, got, ok, tt.want, tt.ok)
		}
	}
}

func TestInvitationIDAndCode(t *testing.T) {
	id := InvitationIDFor(7)
	if id != "invitation#INV0007" {
		t.Fatalf("InvitationIDFor(7) = %q", id)
	}
	if got := InvitationCode("EVENT_42", id); got != "EVENT#42#INV0007" {
		t.Fatalf("InvitationCode = %q, want %q", got, "EVENT#42#INV0007")
	}
}

func TestPlanTransitions(t *testing.T) {
	tests := []struct {
		from, to InvitationState
		want     TransitionEffect
	}{
		{StateCreated, StateSent, TransitionApply},
		{StateCreated, StateApproved, TransitionApply},
		{StateCreated, StateRevoked, TransitionApply},
		{StateSent, StateSent, TransitionApply},
		{StateSent, StateApproved, TransitionApply},
		{StateApproved, StateApproved, TransitionNoop},
		{StateApproved, StateSent, TransitionApply},
		{StateApproved, StateRevoked, TransitionApply},
		{StateRevoked, StateRevoked, TransitionNoop},
		{StateRevoked, StateApproved, TransitionRejected},
		{StateRevoked, StateSent, TransitionRejected},
		{"", StateApproved, TransitionRejected},
	}
	for _, tt := range tests {
		if got := Plan(tt.from, tt.to); got != tt.want {
			t.Fatalf("Plan(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation(" revoked ")
	if err != nil || op != OpRevoked {
		t.Fatalf("ParseOperation = (%q, %v), want REVOKED", op, err)
	}
	if _, err := ParseOperation("DELETE"); err == nil {
		t.Fatal("expected error for DELETE")
	}
	if _, err := ParseOperation("CREATED"); err == nil {
		t.Fatal("CREATED is set by the pipeline only")
	}
}

func TestSummaryTotalsAreRecomputed(t *testing.T) {
	var s BundlesSummary
	s.MergeCreated(BundleDeltas{"B1": {"VIP": 2, "GENERAL": 3}})
	s.MergeCreated(BundleDeltas{"B1": {"VIP": 1}, "B2": {"GENERAL": 4}})

	b1 := s.Entry("B1")
	if b1.CreatedTypeQty["VIP"] != 3 || b1.CreatedTotalQty != 6 {
		t.Fatalf("B1 = %+v, want VIP=3 total=6", b1)
	}

	// A corrupted running total is corrected by the next merge.
	b1.CreatedTotalQty = 99
	s.MergeTransitions(BundleDeltas{"B1": {"VIP": 1}}, BundleDeltas{"B2": {"GENERAL": 2}})
	if b1.CreatedTotalQty != b1.CreatedTypeQty.Sum() {
		t.Fatalf("created total = %d, want %d", b1.CreatedTotalQty, b1.CreatedTypeQty.Sum())
	}
	if b1.ApprovedTotalQty != 1 {
		t.Fatalf("approved total = %d, want 1", b1.ApprovedTotalQty)
	}
	if got := s.Entry("B2").RevokedTotalQty; got != 2 {
		t.Fatalf("B2 revoked total = %d, want 2", got)
	}
}

func TestBundleCounts(t *testing.T) {
	var b Bundle
	b.AddCreated(
		[]Contact{{Name: "a", InvitationType: "VIP"}, {Name: "b", InvitationType: "GENERAL"}},
		[]string{"invitation#INV0001", "invitation#INV0002"},
	)
	if b.TotalInvitations != 2 {
		t.Fatalf("total = %d, want 2", b.TotalInvitations)
	}
	if b.StateCountsByType["VIP"][StateCreated] != 1 || b.StateCountsByType["GENERAL"][StateCreated] != 1 {
		t.Fatalf("state counts = %v", b.StateCountsByType)
	}

	b.Count("VIP", StateApproved, 1)
	if b.StateCountsByType["VIP"][StateCreated] != 1 || b.StateCountsByType["VIP"][StateApproved] != 1 {
		t.Fatalf("after approval = %v", b.StateCountsByType["VIP"])
	}
}

func TestDecodeRoundTripsTypedRecords(t *testing.T) {
	inv := &Invitation{
		Code:    "EVENT#1#INV0001",
		Contact: Contact{Name: "Ada", Email: "ada@example.com", InvitationType: "VIP"},
	}
	inv.Status.Stamp(StateCreated, "admin", "csv", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	item, err := Encode("EVENT_1", "invitation#INV0001", inv)
	if err != nil {
		t.Fatalf("Encode error = %v", err)
	}
	if item.Kind != KindInvitation {
		t.Fatalf("kind = %q, want invitation", item.Kind)
	}

	rec, err := Decode(item)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	got, ok := rec.(*Invitation)
	if !ok {
		t.Fatalf("Decode returned %T, want *Invitation", rec)
	}
	if got.EventID != "EVENT_1" || got.InvitationID != "invitation#INV0001" {
		t.Fatalf("identity = %s/%s", got.EventID, got.InvitationID)
	}
	if !got.Status.IsCreated() || got.Status.Current != StateCreated {
		t.Fatalf("status = %+v", got.Status)
	}
}

func TestDecodeInfersKindFromOperation(t *testing.T) {
	rec, err := Decode(EventItem{EventID: "EVENT_1", Operation: "bundle#VIP", Data: []byte(`{"bundleName":"VIP","totalInvitations":3}`)})
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	b, ok := rec.(*Bundle)
	if !ok || b.TotalInvitations != 3 {
		t.Fatalf("Decode = %#v", rec)
	}

	_, err = Decode(EventItem{EventID: "EVENT_1", Operation: "mystery"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Decode(mystery) error = %v, want ErrUnknownKind", err)
	}
}

func TestSnapshotLocation(t *testing.T) {
	core := EventCore{CoreData: CoreData{
		GeneralData: GeneralData{EventName: "Fest"},
		VenueData:   VenueData{VenueName: "Arena", Country: "ES"},
	}}
	if got := core.Snapshot().Location(); got != "Arena, ES" {
		t.Fatalf("Location = %q, want %q", got, "Arena, ES")
	}
	if core.IsEmpty() {
		t.Fatal("core with a name is not empty")
	}
}

func TestStampKeepsAggregationFlags(t *testing.T) {
	var s StatusBlock
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if s.MarkAggregated(StateApproved, true, true) {
		t.Fatal("MarkAggregated on a missing stamp reported success")
	}

	s.Stamp(StateApproved, "admin", "FORM-ADMIN", at)
	if s.Stamps[StateApproved].Aggregated() {
		t.Fatal("fresh stamp is already aggregated")
	}
	s.MarkAggregated(StateApproved, true, false)
	s.MarkAggregated(StateApproved, false, true)
	if !s.Stamps[StateApproved].Aggregated() {
		t.Fatalf("stamp = %+v, want both flags", s.Stamps[StateApproved])
	}

	s.Stamp(StateSent, "system", "EMAIL", at.Add(time.Hour))
	s.Stamp(StateApproved, "admin", "FORM-ADMIN", at.Add(2*time.Hour))
	if stamp := s.Stamps[StateApproved]; !stamp.Aggregated() || !stamp.Timestamp.Equal(at.Add(2*time.Hour)) {
		t.Fatalf("restamped = %+v, want flags kept and new timestamp", stamp)
	}
	if !Aggregates(StateRevoked) || Aggregates(StateSent) {
		t.Fatal("only APPROVED and REVOKED feed the counters")
	}
}

func TestZonesCheckInAndMove(t *testing.T) {
	v := &ZonesValidation{Zones: map[int]Zone{
		EntranceZone: {ID: EntranceZone, Name: "Entrance", MaxCapacity: 100},
		1:            {ID: 1, Name: "VIP Lounge", MaxCapacity: 10, AllowedTypes: map[string]bool{"VIP": true}},
	}}
	v.CheckIn("W1", ZoneAccess{InvitationID: "invitation#INV0001", InvitationType: "VIP", ZoneID: 7})
	v.CheckIn("W2", ZoneAccess{InvitationID: "invitation#INV0002", InvitationType: "GENERAL"})
	if v.BandWrists["W1"].ZoneID != EntranceZone || v.People(EntranceZone) != 2 || v.MetadataZones.PeopleQty != 2 {
		t.Fatalf("after check-in = %+v", v)
	}

	v.Move("W1", 1)
	if v.People(EntranceZone) != 1 || v.People(1) != 1 || v.MetadataZones.PeopleQty != 2 {
		t.Fatalf("after move = %+v", v.MetadataZones)
	}
	if id, ok := v.WristbandOf("invitation#INV0002"); !ok || id != "W2" {
		t.Fatalf("WristbandOf = %q, %v", id, ok)
	}

	if !CanMove(EntranceZone, 1) || !CanMove(2, EntranceZone) || CanMove(1, 2) || CanMove(EntranceZone, EntranceZone) {
		t.Fatal("moves must go through the entrance")
	}
	lounge := v.Zones[1]
	if lounge.Admits("GENERAL") || !lounge.Admits("VIP") || !v.Zones[EntranceZone].Admits("GENERAL") {
		t.Fatal("type admission mismatch")
	}
	if lounge.Available(12) != 0 || lounge.Available(3) != 7 {
		t.Fatal("available spots mismatch")
	}
}
