package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a row carries a kind no record type handles.
var ErrUnknownKind = errors.New("unknown record kind")

// Record is a typed payload of an EventItem. Decode produces pointers to
// *EventCore, *Bundle, *BundlesSummary, *Invitation, *SyncRecord, *Template
// or *ZonesValidation.
type Record interface {
	Kind() RecordKind
}

func (EventCore) Kind() RecordKind       { return KindCore }
func (Bundle) Kind() RecordKind          { return KindBundle }
func (BundlesSummary) Kind() RecordKind  { return KindBundles }
func (Invitation) Kind() RecordKind      { return KindInvitation }
func (SyncRecord) Kind() RecordKind      { return KindSync }
func (Template) Kind() RecordKind        { return KindTemplate }
func (ZonesValidation) Kind() RecordKind { return KindZones }

// Decode turns a storage row into its typed record. Rows written without a kind
// are classified by their sort key.
func Decode(item EventItem) (Record, error) {
	kind := item.Kind
	if kind == "" {
		inferred, ok := KindForOperation(item.Operation)
		if !ok {
			return nil, fmt.Errorf("%w: operation %q", ErrUnknownKind, item.Operation)
		}
		kind = inferred
	}

	var rec Record
	switch kind {
	case KindCore:
		rec = &EventCore{}
	case KindBundle:
		rec = &Bundle{}
	case KindBundles:
		rec = &BundlesSummary{}
	case KindInvitation:
		rec = &Invitation{}
	case KindSync:
		rec = &SyncRecord{}
	case KindTemplate:
		rec = &Template{}
	case KindZones:
		rec = &ZonesValidation{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if len(item.Data) > 0 {
		if err := json.Unmarshal(item.Data, rec); err != nil {
			return nil, fmt.Errorf("decode %s record %s/%s: %w", kind, item.EventID, item.Operation, err)
		}
	}

	switch r := rec.(type) {
	case *Invitation:
		r.EventID, r.InvitationID = item.EventID, item.Operation
	case *Template:
		r.TemplateID = item.EventID
	}
	return rec, nil
}

// Encode builds the storage row for a record. Version is left for the repository to manage.
func Encode(eventID, operation string, rec Record) (EventItem, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return EventItem{}, fmt.Errorf("encode %s record %s/%s: %w", rec.Kind(), eventID, operation, err)
	}
	return EventItem{
		EventID:   eventID,
		Operation: operation,
		Kind:      rec.Kind(),
		Data:      data,
	}, nil
}
