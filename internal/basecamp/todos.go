package basecamp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
)

// The API never returns completed, archived, or trashed tasks from the
// plain todos listing, so each visibility partition needs its own query.
// Order matters: the first partition to return a task id wins the merge.
var partitions = []string{
	"",
	"?completed=true",
	"?status=archived",
	"?status=archived&completed=true",
	"?status=trashed",
}

// TodosForList fetches every task of one todolist across all visibility
// partitions, deduplicated by id. A failing partition is logged and
// contributes nothing; the remaining partitions still run. The exclude
// flags filter the merged set, they never skip partition queries.
func (c *Client) TodosForList(ctx context.Context, listID int64, opts FetchOptions) ([]Todo, error) {
	path := fmt.Sprintf("/%s/buckets/%s/todolists/%d/todos.json", c.accountID, c.projectID, listID)

	var merged []Todo
	seen := make(map[int64]bool)

	for _, partition := range partitions {
		todos, err := c.fetchPartition(ctx, c.baseURL+path+partition)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("todo partition query failed",
				"list_id", listID, "partition", partition, "error", err)
			continue
		}
		for _, todo := range todos {
			if seen[todo.ID] {
				continue
			}
			seen[todo.ID] = true
			merged = append(merged, todo)
		}
	}

	filtered := merged[:0]
	for _, todo := range merged {
		if opts.ExcludeCompleted && todo.Completed {
			continue
		}
		if opts.ExcludeArchived && (todo.Status == "archived" || todo.Status == "trashed") {
			continue
		}
		filtered = append(filtered, todo)
	}
	return filtered, nil
}

func (c *Client) fetchPartition(ctx context.Context, pageURL string) ([]Todo, error) {
	var todos []Todo
	err := c.getPaginated(ctx, pageURL, func(body []byte) error {
		var page []Todo
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("failed to parse todos: %w", err)
		}
		todos = append(todos, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return todos, nil
}

var nextLinkRe = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="next"`)

// getPaginated follows the Link: <url>; rel="next" header until exhausted,
// handing each page body to collect.
func (c *Client) getPaginated(ctx context.Context, pageURL string, collect func(body []byte) error) error {
	for pageURL != "" {
		body, next, err := c.get(ctx, pageURL)
		if err != nil {
			return err
		}
		if err := collect(body); err != nil {
			return err
		}
		pageURL = next
	}
	return nil
}

// get executes one GET and returns the body plus the next-page URL, if any.
func (c *Client) get(ctx context.Context, pageURL string) (body []byte, next string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("basecamp API GET %s: status %d", pageURL, resp.StatusCode)
	}

	if m := nextLinkRe.FindStringSubmatch(resp.Header.Get("Link")); m != nil {
		next = m[1]
	}
	return body, next, nil
}
