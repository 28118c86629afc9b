package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avasseur/boardsync/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.SheetsConfig{
		BaseURL:     srv.URL,
		AccessToken: "test-token",
	})
}

func TestValues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		if r.URL.Path != "/spreadsheets/sheet1/values/Planning!A2:G50" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"range": "Planning!A2:G50",
			"values": [][]any{
				{"Alice", "Review", 42, true},
				{"Bob"},
			},
		})
	})

	rows, err := client.Values(context.Background(), "sheet1", "Planning!A2:G50")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	want := []string{"Alice", "Review", "42", "true"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row 0 cell %d = %q, want %q", i, rows[0][i], cell)
		}
	}
	if len(rows[1]) != 1 || rows[1][0] != "Bob" {
		t.Errorf("row 1 = %v, want ragged single cell", rows[1])
	}
}

func TestValuesEmptyRange(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The API omits "values" entirely for an empty range.
		json.NewEncoder(w).Encode(map[string]any{"range": "W99!A1:O20"})
	})

	rows, err := client.Values(context.Background(), "sheet1", "W99!A1:O20")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestUpdateValues(t *testing.T) {
	var gotBody struct {
		Values [][]any `json:"values"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if got := r.URL.Query().Get("valueInputOption"); got != "RAW" {
			t.Errorf("valueInputOption = %q, want RAW", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"updatedCells": 10})
	})

	rows := [][]string{
		{"1", "Task one", "pending", "Alice", "8/17/2025"},
		{"2", "Task two", "completed", "Bob", "8/18/2025"},
	}
	cells, err := client.UpdateValues(context.Background(), "sheet1", "IT!A2", rows, "RAW")
	if err != nil {
		t.Fatalf("UpdateValues: %v", err)
	}
	if cells != 10 {
		t.Errorf("updatedCells = %d, want 10", cells)
	}
	if len(gotBody.Values) != 2 {
		t.Errorf("server received %d rows, want 2", len(gotBody.Values))
	}
}

func TestClearRangeErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"permission denied"}`, http.StatusForbidden)
	})

	err := client.ClearRange(context.Background(), "sheet1", "IT!A2:E500")
	if err == nil {
		t.Fatal("expected error on 403 response")
	}
}

func TestListTabs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"sheets": []map[string]any{
				{"properties": map[string]any{"title": "IT"}},
				{"properties": map[string]any{"title": "Money"}},
			},
		})
	})

	tabs, err := client.ListTabs(context.Background(), "sheet1")
	if err != nil {
		t.Fatalf("ListTabs: %v", err)
	}
	if len(tabs) != 2 || tabs[0] != "IT" || tabs[1] != "Money" {
		t.Errorf("tabs = %v, want [IT Money]", tabs)
	}
}

func TestCreateTabWithHeaders(t *testing.T) {
	var calls []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPost:
			var body struct {
				Requests []struct {
					AddSheet struct {
						Properties struct {
							Title string `json:"title"`
						} `json:"properties"`
					} `json:"addSheet"`
				} `json:"requests"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode batchUpdate: %v", err)
			}
			if len(body.Requests) != 1 || body.Requests[0].AddSheet.Properties.Title != "Product" {
				t.Errorf("unexpected addSheet payload: %+v", body.Requests)
			}
			w.Write([]byte("{}"))
		default:
			json.NewEncoder(w).Encode(map[string]any{"updatedCells": 5})
		}
	})

	headers := []string{"ID", "Title", "Status", "Assigned_To", "Due_Date"}
	if err := client.CreateTabWithHeaders(context.Background(), "sheet1", "Product", headers); err != nil {
		t.Fatalf("CreateTabWithHeaders: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d API calls, want create + header write", len(calls))
	}
	if calls[1] != "PUT /spreadsheets/sheet1/values/Product!A1:E1" {
		t.Errorf("header write call = %q", calls[1])
	}
}
