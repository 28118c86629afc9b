// Package sheets provides a client for the spreadsheet API that backs the
// dashboard and receives the synchronized todos.
//
// Ranges use the A1 convention "{tab}!{topleft}:{bottomright}", e.g.
// "Planning!A2:G50". Tab names may contain spaces.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avasseur/boardsync/internal/config"
)

// Client talks to a Google-Sheets-style v4 REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a spreadsheet API client from configuration.
func NewClient(cfg config.SheetsConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.AccessToken,
		http:    &http.Client{Timeout: timeout},
	}
}

type valueRange struct {
	Range  string  `json:"range,omitempty"`
	Values [][]any `json:"values,omitempty"`
}

type updateResponse struct {
	UpdatedCells int `json:"updatedCells"`
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

// Values fetches the cell values of one range. Missing trailing cells are
// absent from the returned rows, mirroring the upstream API.
func (c *Client) Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	path := fmt.Sprintf("/spreadsheets/%s/values/%s", spreadsheetID, url.PathEscape(rng))

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var vr valueRange
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("failed to parse value range: %w", err)
	}

	return stringRows(vr.Values), nil
}

// ClearRange clears the cell values of one range, leaving formatting intact.
func (c *Client) ClearRange(ctx context.Context, spreadsheetID, rng string) error {
	path := fmt.Sprintf("/spreadsheets/%s/values/%s:clear", spreadsheetID, url.PathEscape(rng))
	_, err := c.do(ctx, http.MethodPost, path, struct{}{})
	return err
}

// UpdateValues overwrites a range with the given rows and returns the number
// of updated cells. inputOption is the API's valueInputOption ("RAW" or
// "USER_ENTERED").
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]string, inputOption string) (int, error) {
	if inputOption == "" {
		inputOption = "RAW"
	}
	path := fmt.Sprintf("/spreadsheets/%s/values/%s?valueInputOption=%s",
		spreadsheetID, url.PathEscape(rng), url.QueryEscape(inputOption))

	payload := valueRange{Values: anyRows(values)}
	body, err := c.do(ctx, http.MethodPut, path, payload)
	if err != nil {
		return 0, err
	}

	var resp updateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("failed to parse update response: %w", err)
	}
	return resp.UpdatedCells, nil
}

// ListTabs returns the titles of all tabs in a spreadsheet.
func (c *Client) ListTabs(ctx context.Context, spreadsheetID string) ([]string, error) {
	path := fmt.Sprintf("/spreadsheets/%s?fields=sheets.properties", spreadsheetID)

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var meta spreadsheetMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse spreadsheet metadata: %w", err)
	}

	titles := make([]string, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		titles = append(titles, s.Properties.Title)
	}
	return titles, nil
}

// CreateTab adds a new empty tab to a spreadsheet.
func (c *Client) CreateTab(ctx context.Context, spreadsheetID, title string) error {
	path := fmt.Sprintf("/spreadsheets/%s:batchUpdate", spreadsheetID)

	payload := map[string]any{
		"requests": []map[string]any{
			{"addSheet": map[string]any{"properties": map[string]any{"title": title}}},
		},
	}
	_, err := c.do(ctx, http.MethodPost, path, payload)
	return err
}

// CreateTabWithHeaders adds a tab and writes its header row in one call
// sequence. The tab is left in place if the header write fails.
func (c *Client) CreateTabWithHeaders(ctx context.Context, spreadsheetID, title string, headers []string) error {
	if err := c.CreateTab(ctx, spreadsheetID, title); err != nil {
		return err
	}

	endCol := columnLetter(len(headers))
	rng := fmt.Sprintf("%s!A1:%s1", title, endCol)
	if _, err := c.UpdateValues(ctx, spreadsheetID, rng, [][]string{headers}, "RAW"); err != nil {
		return fmt.Errorf("tab %q created but header write failed: %w", title, err)
	}
	return nil
}

// do executes one API request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sheets API %s %s: status %d: %s", method, path, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// stringRows flattens the API's loosely typed cell values to strings.
func stringRows(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case string:
				cells[j] = v
			case float64:
				cells[j] = strconv.FormatFloat(v, 'f', -1, 64)
			case bool:
				cells[j] = strconv.FormatBool(v)
			case nil:
				cells[j] = ""
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}

func anyRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}

// columnLetter converts a 1-based column count to its A1 letter.
// Only single-letter columns are needed here (at most 26).
func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	if n > 26 {
		n = 26
	}
	return string(rune('A' + n - 1))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
