package metadata

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

const eventName = "audit.events.audit-recorded"

func TestNewPairs(t *testing.T) {
	md := New(KeyEventName, eventName, "dangling")
	if len(md) != 1 || md[KeyEventName] != eventName {
		t.Fatalf("unexpected metadata %#v", md)
	}
}

func TestWithDropsBlankValues(t *testing.T) {
	base := New(KeyEventName, eventName)

	withCorrelation := base.With(KeyCorrelationID, "corr-1")
	if withCorrelation[KeyCorrelationID] != "corr-1" {
		t.Fatalf("expected correlation id, got %#v", withCorrelation)
	}
	if _, ok := base[KeyCorrelationID]; ok {
		t.Fatal("With must not modify the receiver")
	}
	if _, ok := base.With(KeyCorrelationID, "")[KeyCorrelationID]; ok {
		t.Fatal("blank values must be dropped")
	}
}

func TestMergeOverlays(t *testing.T) {
	var empty Metadata
	merged := empty.Merge(Metadata{KeyContentType: "application/json"}).Merge(Metadata{KeyContentType: "text/plain", KeyTraceID: "t"})
	if merged[KeyContentType] != "text/plain" || merged[KeyTraceID] != "t" {
		t.Fatalf("unexpected merge result %#v", merged)
	}
	if empty.Merge(nil) == nil {
		t.Fatal("expected a non-nil map")
	}
}

func TestToWatermillCopies(t *testing.T) {
	md := Metadata{KeyEventName: eventName}
	wm := md.ToWatermill()
	wm.Set(KeyEventName, "changed")
	if md[KeyEventName] != eventName {
		t.Fatal("watermill metadata must not alias the source")
	}
	if len(Metadata(nil).ToWatermill()) != 0 {
		t.Fatal("expected empty watermill metadata")
	}
}

func TestSelects(t *testing.T) {
	msg := message.NewMessage("1", nil)
	msg.Metadata = New(KeyEventName, eventName).ToWatermill()

	if !Selects(msg, eventName) {
		t.Fatal("expected audit event to be selected")
	}
	if Selects(msg, "audit.events.other") || Selects(nil, eventName) {
		t.Fatal("unexpected selection")
	}
}
