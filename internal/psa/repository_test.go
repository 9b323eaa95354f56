package psa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestSplitCollectionShapes(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantLen   int
		wantShape listShape
	}{
		{"bare array", `[{"id":1},{"id":2}]`, 2, shapeArray},
		{"empty array", `[]`, 0, shapeArray},
		{"records wrapper", `{"records":[{"id":1},{"id":2}]}`, 2, shapeWrapped},
		{"entity wrapper", `{"tickets":[{"id":1},{"id":2}]}`, 2, shapeWrapped},
		{"unknown wrapper key", `{"rows":[{"id":1}]}`, 0, shapeUnknown},
		{"scalar payload", `42`, 0, shapeUnknown},
		{"empty payload", ``, 0, shapeUnknown},
		{"wrapper value not an array", `{"records":{"id":1}}`, 0, shapeUnknown},
		{"non-array wrapper falls through to next key", `{"records":"busy","tickets":[{"id":9}]}`, 1, shapeWrapped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, shape := splitCollection(json.RawMessage(tt.payload))
			if len(records) != tt.wantLen {
				t.Errorf("records = %d, want %d", len(records), tt.wantLen)
			}
			if shape != tt.wantShape {
				t.Errorf("shape = %d, want %d", shape, tt.wantShape)
			}
		})
	}
}

// Same records in all three response shapes must map to the same
// slice.
func TestListNormalizesAllShapes(t *testing.T) {
	payloads := map[string]string{
		"bare array":      `[{"id":1,"summary":"a"},{"id":2,"summary":"b"}]`,
		"records wrapper": `{"records":[{"id":1,"summary":"a"},{"id":2,"summary":"b"}]}`,
		"entity wrapper":  `{"tickets":[{"id":1,"summary":"a"},{"id":2,"summary":"b"}]}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(payload))
			})
			got, err := NewTicketService(c).List(context.Background(), nil)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len = %d, want 2", len(got))
			}
			if got[0].ID != 1 || got[0].Summary != "a" {
				t.Errorf("first = %+v", got[0])
			}
			if got[1].ID != 2 || got[1].Summary != "b" {
				t.Errorf("second = %+v", got[1])
			}
		})
	}
}

func TestListUnknownShapeIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":1,"total":0}`))
	})
	got, err := NewTicketService(c).List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0 for an unrecognized payload", len(got))
	}
}

func TestMapCollectionSurfacesTransformError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1},{"id":2}]`))
	})
	repo := NewRepository(c, "/widgets", func(raw json.RawMessage) (int, error) {
		var rec struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return 0, err
		}
		if rec.ID == 2 {
			return 0, fmt.Errorf("unexpected record")
		}
		return rec.ID, nil
	})

	_, err := repo.List(context.Background(), nil)
	if err == nil {
		t.Fatal("expected the transform failure to surface")
	}
	if !strings.Contains(err.Error(), "/widgets") {
		t.Errorf("error = %q, want it to name the endpoint", err)
	}
}

func TestRepositoryGetPath(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":7,"summary":"vpn down"}`))
	})
	got, err := NewTicketService(c).Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/tickets/7" {
		t.Errorf("path = %q, want /tickets/7", gotPath)
	}
	if got.ID != 7 || got.Summary != "vpn down" {
		t.Errorf("ticket = %+v", got)
	}
}

func TestRepositorySubmitPayload(t *testing.T) {
	var gotMethod string
	var gotBody []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`[{"id":31,"summary":"new"}]`))
	})

	created, err := NewTicketService(c).Create(context.Background(), []map[string]any{{"summary": "new"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if len(gotBody) != 1 || gotBody[0]["summary"] != "new" {
		t.Errorf("body = %+v", gotBody)
	}
	if len(created) != 1 || created[0].ID != 31 {
		t.Errorf("created = %+v", created)
	}
}

func TestRepositoryDelete(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})
	if err := NewTicketService(c).Delete(context.Background(), 12); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/tickets/12" {
		t.Errorf("call = %s %s, want DELETE /tickets/12", gotMethod, gotPath)
	}
}
