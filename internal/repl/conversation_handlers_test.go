package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sirupsen/logrus"

	"github.com/deskmate-io/deskmate/internal/merge"
	"github.com/deskmate-io/deskmate/internal/types"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeTickets struct {
	tickets   map[int]types.Ticket
	recent    []types.Ticket
	getErr    error
	recentErr error
	gotClient int
	gotSince  time.Time
	gotMax    int
}

func (f *fakeTickets) Get(ctx context.Context, id int) (types.Ticket, error) {
	if f.getErr != nil {
		return types.Ticket{}, f.getErr
	}
	t, ok := f.tickets[id]
	if !ok {
		return types.Ticket{}, fmt.Errorf("resource not found: /tickets/%d", id)
	}
	return t, nil
}

func (f *fakeTickets) GetWithActions(ctx context.Context, id int) (types.Ticket, error) {
	return f.Get(ctx, id)
}

func (f *fakeTickets) RecentForClient(ctx context.Context, clientID int, since time.Time, max int) ([]types.Ticket, error) {
	f.gotClient = clientID
	f.gotSince = since
	f.gotMax = max
	return f.recent, f.recentErr
}

type fakeClients struct {
	clients   []types.Client
	gotParams url.Values
	err       error
}

func (f *fakeClients) List(ctx context.Context, params url.Values) ([]types.Client, error) {
	f.gotParams = params
	return f.clients, f.err
}

type fakeDetector struct {
	candidates []types.DuplicateCandidate
	gotID      int
	err        error
}

func (f *fakeDetector) FindDuplicates(ctx context.Context, ticketID int) ([]types.DuplicateCandidate, error) {
	f.gotID = ticketID
	return f.candidates, f.err
}

type fakeMerger struct {
	result *types.MergeResult
	gotReq merge.MergeRequest
	err    error
}

func (f *fakeMerger) Merge(ctx context.Context, req merge.MergeRequest) (*types.MergeResult, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRecorder struct {
	gotProfile string
	gotNote    string
	gotResult  *types.MergeResult
	calls      int
	err        error
}

func (f *fakeRecorder) RecordMerge(ctx context.Context, profile, note string, result *types.MergeResult, started, finished time.Time) (string, error) {
	f.calls++
	f.gotProfile = profile
	f.gotNote = note
	f.gotResult = result
	if f.err != nil {
		return "", f.err
	}
	return "rec-1", nil
}

func TestToolGetTicket(t *testing.T) {
	t.Run("formats ticket with notes", func(t *testing.T) {
		tickets := &fakeTickets{tickets: map[int]types.Ticket{
			4821: {
				ID:         4821,
				Summary:    "Printer offline in break room",
				ClientID:   42,
				Category:   "Hardware",
				PriorityID: 2,
				Status:     "Open",
				CreatedAt:  time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC),
				Actions: []types.Action{
					{ID: 1, Note: "Rebooted the print server, no change.", Who: "Dana Diaz", Timestamp: time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)},
					{ID: 2, Note: "Vendor ticket opened.", Who: "Sam Ortiz", Hidden: true, Timestamp: time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)},
				},
			},
		}}
		handler := &ConversationHandler{services: Services{Tickets: tickets}, log: testLogger()}

		result, err := handler.toolGetTicket(context.Background(), map[string]interface{}{"ticket_id": float64(4821)})
		if err != nil {
			t.Fatalf("toolGetTicket failed: %v", err)
		}

		if !strings.Contains(result, "#4821  Printer offline in break room") {
			t.Errorf("Expected header in output, got: %s", result)
		}
		if !strings.Contains(result, "Status: Open | Client: 42 | Category: Hardware | Priority: 2") {
			t.Errorf("Expected status line in output, got: %s", result)
		}
		if !strings.Contains(result, "[2026-03-01 10:02] Dana Diaz: Rebooted") {
			t.Errorf("Expected note with author in output, got: %s", result)
		}
		if !strings.Contains(result, "Sam Ortiz (internal):") {
			t.Errorf("Expected hidden note marker in output, got: %s", result)
		}
	})

	t.Run("requires ticket_id", func(t *testing.T) {
		handler := &ConversationHandler{services: Services{Tickets: &fakeTickets{}}, log: testLogger()}

		_, err := handler.toolGetTicket(context.Background(), map[string]interface{}{})
		if err == nil || !strings.Contains(err.Error(), "ticket_id is required") {
			t.Errorf("Expected ticket_id error, got: %v", err)
		}
	})

	t.Run("propagates load failures", func(t *testing.T) {
		tickets := &fakeTickets{getErr: errors.New("boom")}
		handler := &ConversationHandler{services: Services{Tickets: tickets}, log: testLogger()}

		_, err := handler.toolGetTicket(context.Background(), map[string]interface{}{"ticket_id": float64(9)})
		if err == nil || !strings.Contains(err.Error(), "failed to load ticket 9") {
			t.Errorf("Expected wrapped load error, got: %v", err)
		}
	})
}

func TestToolRecentTickets(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		tickets := &fakeTickets{recent: []types.Ticket{
			{ID: 1, Summary: "VPN drops", Status: "Open", CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		}}
		handler := &ConversationHandler{services: Services{Tickets: tickets}, log: testLogger()}

		before := time.Now()
		result, err := handler.toolRecentTickets(context.Background(), map[string]interface{}{"client_id": float64(42)})
		if err != nil {
			t.Fatalf("toolRecentTickets failed: %v", err)
		}

		if tickets.gotClient != 42 {
			t.Errorf("client = %d, want 42", tickets.gotClient)
		}
		if tickets.gotMax != 20 {
			t.Errorf("limit = %d, want default 20", tickets.gotMax)
		}
		wantSince := before.Add(-72 * time.Hour)
		if tickets.gotSince.Before(wantSince.Add(-time.Minute)) || tickets.gotSince.After(wantSince.Add(time.Minute)) {
			t.Errorf("since = %v, want about %v", tickets.gotSince, wantSince)
		}
		if !strings.Contains(result, "- #1 [Open] VPN drops") {
			t.Errorf("Expected ticket line in output, got: %s", result)
		}
	})

	t.Run("honors hours and limit", func(t *testing.T) {
		tickets := &fakeTickets{}
		handler := &ConversationHandler{services: Services{Tickets: tickets}, log: testLogger()}

		result, err := handler.toolRecentTickets(context.Background(), map[string]interface{}{
			"client_id": float64(7),
			"hours":     float64(24),
			"limit":     float64(5),
		})
		if err != nil {
			t.Fatalf("toolRecentTickets failed: %v", err)
		}

		if tickets.gotMax != 5 {
			t.Errorf("limit = %d, want 5", tickets.gotMax)
		}
		if !strings.Contains(result, "last 24 hours") {
			t.Errorf("Expected window in output, got: %s", result)
		}
	})

	t.Run("requires client_id", func(t *testing.T) {
		handler := &ConversationHandler{services: Services{Tickets: &fakeTickets{}}, log: testLogger()}

		_, err := handler.toolRecentTickets(context.Background(), map[string]interface{}{})
		if err == nil || !strings.Contains(err.Error(), "client_id is required") {
			t.Errorf("Expected client_id error, got: %v", err)
		}
	})
}

func TestToolFindDuplicates(t *testing.T) {
	t.Run("formats scored candidates", func(t *testing.T) {
		detector := &fakeDetector{candidates: []types.DuplicateCandidate{
			{ID: 4790, Summary: "printer is offline break room", Status: "Open", Score: 0.82, MatchedWords: []string{"break", "offline", "printer", "room"}},
			{ID: 4711, Summary: "break room printer", Status: "Closed", Score: 0.7},
		}}
		handler := &ConversationHandler{services: Services{Tickets: &fakeTickets{}, Detector: detector}, log: testLogger()}

		result, err := handler.toolFindDuplicates(context.Background(), map[string]interface{}{"ticket_id": float64(4821)})
		if err != nil {
			t.Fatalf("toolFindDuplicates failed: %v", err)
		}

		if detector.gotID != 4821 {
			t.Errorf("scanned ticket = %d, want 4821", detector.gotID)
		}
		if !strings.Contains(result, "#4790 (score 0.82, Open)") {
			t.Errorf("Expected scored candidate in output, got: %s", result)
		}
		if !strings.Contains(result, "shared words: break, offline, printer, room") {
			t.Errorf("Expected shared words in output, got: %s", result)
		}
	})

	t.Run("reports no matches", func(t *testing.T) {
		handler := &ConversationHandler{services: Services{Tickets: &fakeTickets{}, Detector: &fakeDetector{}}, log: testLogger()}

		result, err := handler.toolFindDuplicates(context.Background(), map[string]interface{}{"ticket_id": float64(12)})
		if err != nil {
			t.Fatalf("toolFindDuplicates failed: %v", err)
		}
		if result != "No likely duplicates found for ticket 12" {
			t.Errorf("Expected no-match message, got: %s", result)
		}
	})
}

func TestToolMergeTickets(t *testing.T) {
	cleanResult := &types.MergeResult{
		PrimaryID: 100,
		Merged: []types.MergedTicket{
			{ID: 101, Summary: "printer down", NotesCopied: 2},
		},
		TotalNotesCopied: 2,
	}

	t.Run("merges and records history", func(t *testing.T) {
		merger := &fakeMerger{result: cleanResult}
		recorder := &fakeRecorder{}
		handler := &ConversationHandler{
			services: Services{Tickets: &fakeTickets{}, Coordinator: merger, History: recorder, Profile: "prod"},
			log:      testLogger(),
		}

		result, err := handler.toolMergeTickets(context.Background(), map[string]interface{}{
			"primary_id":    float64(100),
			"secondary_ids": []interface{}{float64(101)},
			"note":          "Dup of the printer outage",
		})
		if err != nil {
			t.Fatalf("toolMergeTickets failed: %v", err)
		}

		if merger.gotReq.PrimaryID != 100 || len(merger.gotReq.SecondaryIDs) != 1 || merger.gotReq.SecondaryIDs[0] != 101 {
			t.Errorf("unexpected merge request: %+v", merger.gotReq)
		}
		if merger.gotReq.Note != "Dup of the printer outage" {
			t.Errorf("note = %q, want caller note", merger.gotReq.Note)
		}
		if !strings.Contains(result, "Merged 1 tickets into #100, 2 notes copied") {
			t.Errorf("Expected merge summary in output, got: %s", result)
		}
		if recorder.calls != 1 || recorder.gotProfile != "prod" {
			t.Errorf("expected one history record for prod, got %d calls for %q", recorder.calls, recorder.gotProfile)
		}
		if recorder.gotNote != "Dup of the printer outage" {
			t.Errorf("recorded note = %q, want caller note", recorder.gotNote)
		}
	})

	t.Run("reports partial failures", func(t *testing.T) {
		merger := &fakeMerger{result: &types.MergeResult{
			PrimaryID:        100,
			Merged:           []types.MergedTicket{{ID: 101, Summary: "printer down", NotesCopied: 1}},
			TotalNotesCopied: 1,
			Errors:           []types.MergeError{{ID: 102, Message: "resource not found: /tickets/102"}},
		}}
		handler := &ConversationHandler{
			services: Services{Tickets: &fakeTickets{}, Coordinator: merger},
			log:      testLogger(),
		}

		result, err := handler.toolMergeTickets(context.Background(), map[string]interface{}{
			"primary_id":    float64(100),
			"secondary_ids": []interface{}{float64(101), float64(102)},
		})
		if err != nil {
			t.Fatalf("toolMergeTickets failed: %v", err)
		}

		if !strings.Contains(result, "1 tickets failed to merge") {
			t.Errorf("Expected failure section in output, got: %s", result)
		}
		if !strings.Contains(result, "- #102: resource not found") {
			t.Errorf("Expected failed ticket detail in output, got: %s", result)
		}
	})

	t.Run("tolerates history failures", func(t *testing.T) {
		merger := &fakeMerger{result: cleanResult}
		recorder := &fakeRecorder{err: errors.New("disk full")}
		handler := &ConversationHandler{
			services: Services{Tickets: &fakeTickets{}, Coordinator: merger, History: recorder},
			log:      testLogger(),
		}

		result, err := handler.toolMergeTickets(context.Background(), map[string]interface{}{
			"primary_id":    float64(100),
			"secondary_ids": []interface{}{float64(101)},
		})
		if err != nil {
			t.Fatalf("toolMergeTickets should not fail on history errors: %v", err)
		}
		if !strings.Contains(result, "Merged 1 tickets into #100") {
			t.Errorf("Expected merge summary despite history failure, got: %s", result)
		}
	})

	t.Run("rejects bad arguments", func(t *testing.T) {
		handler := &ConversationHandler{
			services: Services{Tickets: &fakeTickets{}, Coordinator: &fakeMerger{}},
			log:      testLogger(),
		}

		cases := []struct {
			name    string
			input   map[string]interface{}
			wantErr string
		}{
			{"missing primary", map[string]interface{}{"secondary_ids": []interface{}{float64(1)}}, "primary_id is required"},
			{"missing secondaries", map[string]interface{}{"primary_id": float64(1)}, "secondary_ids is required"},
			{"non-integer secondary", map[string]interface{}{"primary_id": float64(1), "secondary_ids": []interface{}{"two"}}, "must be integers"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := handler.toolMergeTickets(context.Background(), tc.input)
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Errorf("Expected %q error, got: %v", tc.wantErr, err)
				}
			})
		}
	})

	t.Run("propagates merge failures", func(t *testing.T) {
		merger := &fakeMerger{err: errors.New("authentication failed (status 401): bad credentials")}
		handler := &ConversationHandler{
			services: Services{Tickets: &fakeTickets{}, Coordinator: merger},
			log:      testLogger(),
		}

		_, err := handler.toolMergeTickets(context.Background(), map[string]interface{}{
			"primary_id":    float64(100),
			"secondary_ids": []interface{}{float64(101)},
		})
		if err == nil || !strings.Contains(err.Error(), "merge failed") {
			t.Errorf("Expected wrapped merge error, got: %v", err)
		}
	})
}

func TestToolListClients(t *testing.T) {
	t.Run("lists with inactive marker", func(t *testing.T) {
		clients := &fakeClients{clients: []types.Client{
			{ID: 42, Name: "Acme Corp"},
			{ID: 57, Name: "Globex", Inactive: true},
		}}
		handler := &ConversationHandler{services: Services{Tickets: &fakeTickets{}, Clients: clients}, log: testLogger()}

		result, err := handler.toolListClients(context.Background(), map[string]interface{}{"search": "corp", "limit": float64(10)})
		if err != nil {
			t.Fatalf("toolListClients failed: %v", err)
		}

		if clients.gotParams.Get("search") != "corp" {
			t.Errorf("search param = %q, want corp", clients.gotParams.Get("search"))
		}
		if clients.gotParams.Get("page_size") != "10" {
			t.Errorf("page_size param = %q, want 10", clients.gotParams.Get("page_size"))
		}
		if !strings.Contains(result, "- [42] Acme Corp") {
			t.Errorf("Expected client line in output, got: %s", result)
		}
		if !strings.Contains(result, "- [57] Globex (inactive)") {
			t.Errorf("Expected inactive marker in output, got: %s", result)
		}
	})

	t.Run("handles empty result", func(t *testing.T) {
		handler := &ConversationHandler{services: Services{Tickets: &fakeTickets{}, Clients: &fakeClients{}}, log: testLogger()}

		result, err := handler.toolListClients(context.Background(), map[string]interface{}{})
		if err != nil {
			t.Fatalf("toolListClients failed: %v", err)
		}
		if result != "No clients found" {
			t.Errorf("Expected 'No clients found', got: %s", result)
		}
	})
}

func TestExecuteTool(t *testing.T) {
	handler := &ConversationHandler{
		services: Services{Tickets: &fakeTickets{tickets: map[int]types.Ticket{
			7: {ID: 7, Summary: "Email bounce", Status: "Open", ClientID: 3, CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		}}},
		log: testLogger(),
	}
	ctx := context.Background()

	t.Run("accepts decoded map input", func(t *testing.T) {
		result, err := handler.executeTool(ctx, "get_ticket", map[string]interface{}{"ticket_id": float64(7)})
		if err != nil {
			t.Fatalf("executeTool failed: %v", err)
		}
		if !strings.Contains(result, "Email bounce") {
			t.Errorf("Expected ticket in output, got: %s", result)
		}
	})

	t.Run("accepts raw JSON input", func(t *testing.T) {
		result, err := handler.executeTool(ctx, "get_ticket", json.RawMessage(`{"ticket_id": 7}`))
		if err != nil {
			t.Fatalf("executeTool failed: %v", err)
		}
		if !strings.Contains(result, "Email bounce") {
			t.Errorf("Expected ticket in output, got: %s", result)
		}
	})

	t.Run("accepts byte slice input", func(t *testing.T) {
		result, err := handler.executeTool(ctx, "get_ticket", []byte(`{"ticket_id": 7}`))
		if err != nil {
			t.Fatalf("executeTool failed: %v", err)
		}
		if !strings.Contains(result, "Email bounce") {
			t.Errorf("Expected ticket in output, got: %s", result)
		}
	})

	t.Run("rejects unknown input type", func(t *testing.T) {
		_, err := handler.executeTool(ctx, "get_ticket", 42)
		if err == nil || !strings.Contains(err.Error(), "invalid tool input format") {
			t.Errorf("Expected input format error, got: %v", err)
		}
	})

	t.Run("rejects unknown tool", func(t *testing.T) {
		_, err := handler.executeTool(ctx, "launch_rockets", map[string]interface{}{})
		if err == nil || !strings.Contains(err.Error(), "unknown tool: launch_rockets") {
			t.Errorf("Expected unknown tool error, got: %v", err)
		}
	})
}

func TestGetTools(t *testing.T) {
	handler := &ConversationHandler{log: testLogger()}
	tools := handler.getTools()

	if len(tools) != 5 {
		t.Fatalf("expected 5 tools, got %d", len(tools))
	}

	names := make(map[string]bool)
	for _, tool := range tools {
		if tool.OfTool == nil {
			t.Fatal("tool union missing OfTool")
		}
		names[tool.OfTool.Name] = true
	}

	for _, want := range []string{"get_ticket", "recent_tickets", "find_duplicates", "merge_tickets", "list_clients"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestSystemPrompt(t *testing.T) {
	handler := &ConversationHandler{log: testLogger()}
	prompt := handler.systemPrompt()

	for _, want := range []string{"get_ticket", "recent_tickets", "find_duplicates", "merge_tickets", "list_clients"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt should mention %s", want)
		}
	}
	if !strings.Contains(prompt, "cannot be undone") {
		t.Error("system prompt should warn that merging is irreversible")
	}
}

func TestClearHistory(t *testing.T) {
	handler := &ConversationHandler{log: testLogger()}
	handler.history = append(handler.history, anthropic.NewUserMessage(anthropic.NewTextBlock("hello")))

	handler.ClearHistory()

	if len(handler.history) != 0 {
		t.Errorf("history should be empty after clear, got %d entries", len(handler.history))
	}
}

func TestFormatTicketCapsNotes(t *testing.T) {
	ticket := types.Ticket{
		ID:        1,
		Summary:   "Flaky wifi",
		ClientID:  9,
		Status:    "Open",
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 0; i < 8; i++ {
		ticket.Actions = append(ticket.Actions, types.Action{
			ID:        i + 1,
			Note:      fmt.Sprintf("note %d", i+1),
			Timestamp: time.Date(2026, 3, 1, i, 0, 0, 0, time.UTC),
		})
	}

	out := formatTicket(ticket)

	if !strings.Contains(out, "Notes (8):") {
		t.Errorf("Expected full note count, got: %s", out)
	}
	if !strings.Contains(out, "... 3 older notes omitted") {
		t.Errorf("Expected omission marker, got: %s", out)
	}
	if strings.Contains(out, "note 3") {
		t.Errorf("Older notes should be omitted, got: %s", out)
	}
	if !strings.Contains(out, "note 8") {
		t.Errorf("Latest note should be shown, got: %s", out)
	}
}
