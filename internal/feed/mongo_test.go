package feed

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTranslate(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		name     string
		op       string
		wantType EventType
		wantOK   bool
	}{
		{"insert becomes created", "insert", EventCreated, true},
		{"update becomes modified", "update", EventModified, true},
		{"replace becomes modified", "replace", EventModified, true},
		{"delete becomes removed", "delete", EventRemoved, true},
		{"invalidate is dropped", "invalidate", "", false},
		{"drop is dropped", "drop", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := changeDocument{OperationType: tt.op, FullDocument: bson.M{"status": "pending"}}
			change.DocumentKey.ID = oid

			ev, ok := translate(change)
			if ok != tt.wantOK {
				t.Fatalf("translate ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if ev.Type != tt.wantType {
				t.Errorf("type = %q, want %q", ev.Type, tt.wantType)
			}
			if ev.EntityID != oid.Hex() {
				t.Errorf("entityID = %q, want %q", ev.EntityID, oid.Hex())
			}
		})
	}
}

func TestWatchPipeline(t *testing.T) {
	if p := watchPipeline(nil); len(p) != 0 {
		t.Errorf("empty filter should produce empty pipeline, got %v", p)
	}

	p := watchPipeline(bson.M{"wardID": "ward_1"})
	if len(p) != 1 {
		t.Fatalf("expected one $match stage, got %d", len(p))
	}
	match, ok := p[0][0].Value.(bson.M)
	if !ok {
		t.Fatalf("unexpected stage shape: %#v", p[0])
	}
	or, ok := match["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected $or with filter and delete passthrough, got %#v", match)
	}
	full, ok := or[0].(bson.M)
	if !ok || full["fullDocument.wardID"] != "ward_1" {
		t.Errorf("filter not prefixed with fullDocument: %#v", or[0])
	}
}
