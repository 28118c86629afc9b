// Package basecamp provides a read-only client for the Basecamp 3 API,
// scoped to the single project whose todolists are synchronized.
package basecamp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avasseur/boardsync/internal/config"
)

// Person is a task assignee.
type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Todo is one task record as returned by the API. Status distinguishes
// archived and trashed tasks from active ones.
type Todo struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Completed   bool     `json:"completed"`
	Assignees   []Person `json:"assignees"`
	DueOn       string   `json:"due_on"`
	Status      string   `json:"status"` // active, archived, trashed
	CompletedAt string   `json:"completed_at"`
}

// Todolist is one named task collection within the project's todoset.
type Todolist struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Name  string `json:"name"`
}

// Project is the project holding the synchronized todoset.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Dock []struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	} `json:"dock"`
}

// FetchOptions controls which tasks TodosForList returns. All visibility
// partitions are always queried; these flags filter the merged result.
// The zero value returns everything.
type FetchOptions struct {
	ExcludeCompleted bool
	ExcludeArchived  bool
}

// Client talks to the Basecamp 3 API for one account and project.
type Client struct {
	baseURL   string
	accountID string
	projectID string
	token     string
	userAgent string
	http      *http.Client

	mu       sync.Mutex
	project  *Project
	lists    []Todolist
	listsSet bool
}

// NewClient creates a Basecamp client from configuration.
func NewClient(cfg config.BasecampConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		accountID: cfg.AccountID,
		projectID: cfg.ProjectID,
		token:     cfg.AccessToken,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
	}
}

// Project fetches the configured project, caching the result for the
// lifetime of the client.
func (c *Client) Project(ctx context.Context) (*Project, error) {
	c.mu.Lock()
	if c.project != nil {
		p := c.project
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	path := fmt.Sprintf("/%s/projects/%s.json", c.accountID, c.projectID)
	body, _, err := c.get(ctx, c.baseURL+path)
	if err != nil {
		return nil, err
	}

	var p Project
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project: %w", err)
	}

	c.mu.Lock()
	c.project = &p
	c.mu.Unlock()
	return &p, nil
}

// Todolists fetches all todolists of the project's todoset, caching the
// result. The todoset id comes from the project dock.
func (c *Client) Todolists(ctx context.Context) ([]Todolist, error) {
	c.mu.Lock()
	if c.listsSet {
		lists := c.lists
		c.mu.Unlock()
		return lists, nil
	}
	c.mu.Unlock()

	project, err := c.Project(ctx)
	if err != nil {
		return nil, err
	}

	var todosetID int64
	for _, tool := range project.Dock {
		if tool.Name == "todoset" {
			todosetID = tool.ID
			break
		}
	}
	if todosetID == 0 {
		return nil, fmt.Errorf("project %s has no todoset", c.projectID)
	}

	path := fmt.Sprintf("/%s/buckets/%s/todosets/%d/todolists.json", c.accountID, c.projectID, todosetID)
	var lists []Todolist
	err = c.getPaginated(ctx, c.baseURL+path, func(body []byte) error {
		var page []Todolist
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("failed to parse todolists: %w", err)
		}
		lists = append(lists, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lists = lists
	c.listsSet = true
	c.mu.Unlock()
	return lists, nil
}

// TodolistByName returns the todolist whose title matches name,
// case-insensitively. The second return is false when no list matches.
func (c *Client) TodolistByName(ctx context.Context, name string) (*Todolist, bool, error) {
	lists, err := c.Todolists(ctx)
	if err != nil {
		return nil, false, err
	}
	for i := range lists {
		if strings.EqualFold(lists[i].DisplayName(), name) {
			return &lists[i], true, nil
		}
	}
	return nil, false, nil
}

// DisplayName returns the list's title, falling back to its name field.
func (l *Todolist) DisplayName() string {
	if l.Title != "" {
		return l.Title
	}
	return l.Name
}
