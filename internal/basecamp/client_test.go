package basecamp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avasseur/boardsync/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BasecampConfig{
		BaseURL:     srv.URL,
		AccountID:   "999",
		ProjectID:   "123",
		AccessToken: "test-token",
		UserAgent:   "boardsync test (ops@example.com)",
	})
}

func projectJSON() map[string]any {
	return map[string]any{
		"id":   123,
		"name": "Operations Board",
		"dock": []map[string]any{
			{"id": 7, "name": "chat", "enabled": true},
			{"id": 42, "name": "todoset", "enabled": true},
		},
	}
}

func TestProjectAndTodolists(t *testing.T) {
	var projectCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/999/projects/123.json", func(w http.ResponseWriter, r *http.Request) {
		projectCalls++
		if got := r.Header.Get("User-Agent"); got != "boardsync test (ops@example.com)" {
			t.Errorf("User-Agent = %q", got)
		}
		json.NewEncoder(w).Encode(projectJSON())
	})
	mux.HandleFunc("/999/buckets/123/todosets/42/todolists.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "title": "IT"},
			{"id": 2, "title": "Money"},
		})
	})

	client := newTestClient(t, mux)
	ctx := context.Background()

	lists, err := client.Todolists(ctx)
	if err != nil {
		t.Fatalf("Todolists: %v", err)
	}
	if len(lists) != 2 {
		t.Fatalf("got %d todolists, want 2", len(lists))
	}

	// Second call must come from the cache.
	if _, err := client.Todolists(ctx); err != nil {
		t.Fatalf("Todolists (cached): %v", err)
	}
	if projectCalls != 1 {
		t.Errorf("project fetched %d times, want 1", projectCalls)
	}

	list, ok, err := client.TodolistByName(ctx, "money")
	if err != nil || !ok {
		t.Fatalf("TodolistByName(money) = %v, %v, %v", list, ok, err)
	}
	if list.ID != 2 {
		t.Errorf("matched list id = %d, want 2", list.ID)
	}
	if _, ok, _ := client.TodolistByName(ctx, "Nonexistent"); ok {
		t.Error("TodolistByName matched a missing list")
	}
}

func TestTodosForListPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/999/buckets/123/todolists/1/todos.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("completed") != "" || q.Get("status") != "" {
			// Other partitions are empty.
			w.Write([]byte("[]"))
			return
		}
		switch q.Get("page") {
		case "", "1":
			next := fmt.Sprintf("http://%s%s?page=2", r.Host, r.URL.Path)
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
			json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "title": "First"}})
		case "2":
			json.NewEncoder(w).Encode([]map[string]any{{"id": 2, "title": "Second"}})
		}
	})

	client := newTestClient(t, mux)
	todos, err := client.TodosForList(context.Background(), 1, FetchOptions{})
	if err != nil {
		t.Fatalf("TodosForList: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("got %d todos across pages, want 2", len(todos))
	}
	if todos[0].ID != 1 || todos[1].ID != 2 {
		t.Errorf("page order lost: %v", todos)
	}
}

func TestTodosForListDedupsAcrossPartitions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/999/buckets/123/todolists/1/todos.json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("status") == "archived" && q.Get("completed") == "true":
			w.Write([]byte("[]"))
		case q.Get("status") == "archived":
			// Task 2 appears both active and archived; the active copy wins.
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 2, "title": "Archived copy", "status": "archived"},
				{"id": 4, "title": "Only archived", "status": "archived"},
			})
		case q.Get("status") == "trashed":
			w.Write([]byte("[]"))
		case q.Get("completed") == "true":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 3, "title": "Done", "completed": true, "status": "active"},
			})
		default:
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "title": "Open", "status": "active"},
				{"id": 2, "title": "Open twice", "status": "active"},
			})
		}
	})

	client := newTestClient(t, mux)
	todos, err := client.TodosForList(context.Background(), 1, FetchOptions{})
	if err != nil {
		t.Fatalf("TodosForList: %v", err)
	}

	if len(todos) != 4 {
		t.Fatalf("got %d todos, want 4 deduplicated", len(todos))
	}
	counts := make(map[int64]int)
	for _, todo := range todos {
		counts[todo.ID]++
	}
	if counts[2] != 1 {
		t.Errorf("task 2 appears %d times, want exactly once", counts[2])
	}
	for _, todo := range todos {
		if todo.ID == 2 && todo.Title != "Open twice" {
			t.Errorf("task 2 title = %q, want the first-partition copy", todo.Title)
		}
	}
}

func TestTodosForListFiltersMergedSet(t *testing.T) {
	mux := http.NewServeMux()
	var queries []string
	mux.HandleFunc("/999/buckets/123/todolists/1/todos.json", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		q := r.URL.Query()
		switch {
		case q.Get("completed") == "true" && q.Get("status") == "":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 3, "title": "Done", "completed": true, "status": "active"},
			})
		case q.Get("status") == "trashed":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 5, "title": "Trashed", "status": "trashed"},
			})
		case q.Get("status") == "archived":
			w.Write([]byte("[]"))
		default:
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "title": "Open", "status": "active"},
			})
		}
	})

	client := newTestClient(t, mux)
	todos, err := client.TodosForList(context.Background(), 1,
		FetchOptions{ExcludeCompleted: true, ExcludeArchived: true})
	if err != nil {
		t.Fatalf("TodosForList: %v", err)
	}

	// All five partitions are always queried, filtering happens afterwards.
	if len(queries) != 5 {
		t.Errorf("issued %d partition queries, want 5: %v", len(queries), queries)
	}
	if len(todos) != 1 || todos[0].ID != 1 {
		t.Errorf("filtered todos = %v, want only the open task", todos)
	}
}

func TestTodosForListSurvivesPartitionFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/999/buckets/123/todolists/1/todos.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") == "archived" {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		if r.URL.RawQuery == "" {
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "title": "Open", "status": "active"},
			})
			return
		}
		w.Write([]byte("[]"))
	})

	client := newTestClient(t, mux)
	todos, err := client.TodosForList(context.Background(), 1, FetchOptions{})
	if err != nil {
		t.Fatalf("TodosForList should not fail on one bad partition: %v", err)
	}
	if len(todos) != 1 {
		t.Errorf("got %d todos, want the surviving partition's task", len(todos))
	}
}
