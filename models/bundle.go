package models

// TypeCounts maps an invitation type (VIP, GENERAL, ...) to a count.
type TypeCounts map[string]int

// Add merges other into c.
func (c TypeCounts) Add(other TypeCounts) {
	for k, v := range other {
		c[k] += v
	}
}

// Sum totals every type.
func (c TypeCounts) Sum() int {
	total := 0
	for _, v := range c {
		total += v
	}
	return total
}

// BundleDeltas groups type counts per bundle name.
type BundleDeltas map[string]TypeCounts

// Inc adds one count for (bundle, type).
func (d BundleDeltas) Inc(bundle, invitationType string) {
	if d[bundle] == nil {
		d[bundle] = TypeCounts{}
	}
	d[bundle][invitationType]++
}

// Empty reports whether no bundle carries a non-zero count.
func (d BundleDeltas) Empty() bool {
	for _, counts := range d {
		if counts.Sum() != 0 {
			return false
		}
	}
	return true
}

// InvitationRef points from a bundle to one of its invitations.
type InvitationRef struct {
	SortKey string `json:"invitationSortKey"`
}

// Bundle is the (eventId, "bundle#<name>") record.
type Bundle struct {
	Name              string                             `json:"bundleName"`
	Contacts          []Contact                          `json:"contacts"`
	Invitations       []InvitationRef                    `json:"invitations"`
	TotalInvitations  int                                `json:"totalInvitations"`
	StateCountsByType map[string]map[InvitationState]int `json:"stateCountsByType"`
}

// AddCreated appends freshly created invitations and counts them as CREATED
// under each contact's own type. contacts[i] belongs to invitationIDs[i].
func (b *Bundle) AddCreated(contacts []Contact, invitationIDs []string) {
	for i, id := range invitationIDs {
		b.Invitations = append(b.Invitations, InvitationRef{SortKey: id})
		if i < len(contacts) {
			b.Contacts = append(b.Contacts, contacts[i])
			b.adjust(contacts[i].InvitationType, StateCreated, 1)
		}
	}
	b.TotalInvitations = len(b.Invitations)
}

// Count adds n invitations of a type that reached state. Counts are cumulative:
// each invitation contributes at most once per state.
func (b *Bundle) Count(invitationType string, state InvitationState, n int) {
	b.adjust(invitationType, state, n)
}

func (b *Bundle) adjust(invitationType string, state InvitationState, n int) {
	if b.StateCountsByType == nil {
		b.StateCountsByType = make(map[string]map[InvitationState]int)
	}
	if b.StateCountsByType[invitationType] == nil {
		b.StateCountsByType[invitationType] = make(map[InvitationState]int)
	}
	b.StateCountsByType[invitationType][state] += n
}

// BundleTotals is one bundle's entry in the summary record.
type BundleTotals struct {
	CreatedTypeQty   TypeCounts `json:"createdTypeQty"`
	CreatedTotalQty  int        `json:"createdTotalQty"`
	ApprovedTypeQty  TypeCounts `json:"approvedTypeQty"`
	ApprovedTotalQty int        `json:"approvedTotalQty"`
	RevokedTypeQty   TypeCounts `json:"revokedTypeQty"`
	RevokedTotalQty  int        `json:"revokedTotalQty"`
}

func newBundleTotals() *BundleTotals {
	return &BundleTotals{
		CreatedTypeQty:  TypeCounts{},
		ApprovedTypeQty: TypeCounts{},
		RevokedTypeQty:  TypeCounts{},
	}
}

// Recompute derives every total from its type map. Totals are never incremented in place.
func (t *BundleTotals) Recompute() {
	t.CreatedTotalQty = t.CreatedTypeQty.Sum()
	t.ApprovedTotalQty = t.ApprovedTypeQty.Sum()
	t.RevokedTotalQty = t.RevokedTypeQty.Sum()
}

// BundlesSummary is the per-event (eventId, "bundles") record.
type BundlesSummary struct {
	Bundles map[string]*BundleTotals `json:"bundles"`
}

// Entry returns the totals of a bundle, creating an empty entry when missing.
func (s *BundlesSummary) Entry(bundle string) *BundleTotals {
	if s.Bundles == nil {
		s.Bundles = make(map[string]*BundleTotals)
	}
	t, ok := s.Bundles[bundle]
	if !ok || t == nil {
		t = newBundleTotals()
		s.Bundles[bundle] = t
	}
	if t.CreatedTypeQty == nil {
		t.CreatedTypeQty = TypeCounts{}
	}
	if t.ApprovedTypeQty == nil {
		t.ApprovedTypeQty = TypeCounts{}
	}
	if t.RevokedTypeQty == nil {
		t.RevokedTypeQty = TypeCounts{}
	}
	return t
}

// MergeCreated adds creation deltas and recomputes the touched bundles.
func (s *BundlesSummary) MergeCreated(deltas BundleDeltas) {
	for bundle, counts := range deltas {
		t := s.Entry(bundle)
		t.CreatedTypeQty.Add(counts)
		t.Recompute()
	}
}

// MergeTransitions adds approval and revocation deltas per bundle.
func (s *BundlesSummary) MergeTransitions(approved, revoked BundleDeltas) {
	for bundle, counts := range approved {
		t := s.Entry(bundle)
		t.ApprovedTypeQty.Add(counts)
		t.Recompute()
	}
	for bundle, counts := range revoked {
		t := s.Entry(bundle)
		t.RevokedTypeQty.Add(counts)
		t.Recompute()
	}
}
