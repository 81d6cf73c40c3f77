package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// RecordKind discriminates what an EventItem's Data column holds.
type RecordKind string

const (
	KindCore       RecordKind = "core"
	KindBundle     RecordKind = "bundle"
	KindBundles    RecordKind = "bundles"
	KindInvitation RecordKind = "invitation"
	KindSync       RecordKind = "sync"
	KindTemplate   RecordKind = "template"
	KindZones      RecordKind = "zones"
)

// Sort keys (the "operation" column) used inside an event partition.
const (
	OperationCore       = "core"
	OperationBundles    = "bundles"
	OperationSync       = "sync"
	OperationTemplate   = "template"
	OperationZones      = "zonesValidation"
	BundleOperationPfx  = "bundle#"
	InvitationOperation = "invitation#"
	InvitationIDPrefix  = "invitation#INV"
)

// EventItem is the single storage row behind every record kind.
// (EventID, Operation) is the partition/sort key pair.
type EventItem struct {
	EventID   string         `gorm:"primaryKey;type:varchar(191)" json:"eventId"`
	Operation string         `gorm:"primaryKey;type:varchar(191)" json:"operation"`
	Kind      RecordKind     `gorm:"type:varchar(32);index;not null" json:"kind"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	Version   int64          `gorm:"not null" json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TableName pins the table name regardless of naming strategy.
func (EventItem) TableName() string { return "event_items" }

// Key returns the item's primary key.
func (i EventItem) Key() ItemKey {
	return ItemKey{EventID: i.EventID, Operation: i.Operation}
}

// ItemKey identifies one EventItem.
type ItemKey struct {
	EventID   string `json:"eventId"`
	Operation string `json:"operation"`
}

// KindForOperation infers the record kind from a sort key.
func KindForOperation(operation string) (RecordKind, bool) {
	switch {
	case operation == OperationCore:
		return KindCore, true
	case operation == OperationBundles:
		return KindBundles, true
	case operation == OperationSync:
		return KindSync, true
	case operation == OperationTemplate:
		return KindTemplate, true
	case operation == OperationZones:
		return KindZones, true
	case strings.HasPrefix(operation, BundleOperationPfx):
		return KindBundle, true
	case strings.HasPrefix(operation, InvitationOperation):
		return KindInvitation, true
	}
	return "", false
}

// BundleOperation returns the sort key of a bundle record.
func BundleOperation(bundleName string) string {
	return BundleOperationPfx + bundleName
}
