// Package redmine implements the remote time-entry client against the JSON
// API of a Redmine-compatible server.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"github.com/vrognas/redmyne/internal/domain"
)

// apiKeyHeader authenticates every request.
const apiKeyHeader = "X-Redmine-API-Key"

const (
	defaultTimeout  = 15 * time.Second
	defaultUserID   = "me"
	defaultPageSize = 100
)

// activitiesPath is the enumeration endpoint for the activity catalog.
const activitiesPath = "/enumerations/time_entry_activities.json"

// Config holds construction values for the client.
type Config struct {
	BaseURL  string
	APIKey   string
	UserID   string
	Timeout  time.Duration
	PageSize int
	Logger   *charmLog.Logger
}

// Client talks to one Redmine-compatible server. Queued operation payloads are
// applied verbatim: the method, path, and body staged at edit time are the
// method, path, and body sent.
type Client struct {
	baseURL  string
	apiKey   string
	userID   string
	pageSize int
	http     *http.Client
	logger   *charmLog.Logger
}

// NewClient constructs a new value for this package.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		userID = defaultUserID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = charmLog.Default()
	}

	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		userID:   userID,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// entryEnvelope wraps one mutation body in the wire shape the server expects.
type entryEnvelope struct {
	TimeEntry domain.EntryBody `json:"time_entry"`
}

// idName is a nested reference object in list responses.
type idName struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

type entryDTO struct {
	ID       int64   `json:"id"`
	Project  idName  `json:"project"`
	Issue    idName  `json:"issue"`
	Activity idName  `json:"activity"`
	Hours    float64 `json:"hours"`
	Comments string  `json:"comments"`
	SpentOn  string  `json:"spent_on"`
}

type listEnvelope struct {
	TimeEntries []entryDTO `json:"time_entries"`
	TotalCount  int        `json:"total_count"`
	Offset      int        `json:"offset"`
	Limit       int        `json:"limit"`
}

type activityDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type activitiesEnvelope struct {
	Activities []activityDTO `json:"time_entry_activities"`
}

// errorEnvelope is the server's failure response shape.
type errorEnvelope struct {
	Errors []string `json:"errors"`
}

// Create sends one queued create verbatim.
func (c *Client) Create(ctx context.Context, path string, body domain.EntryBody) error {
	return c.do(ctx, http.MethodPost, path, entryEnvelope{TimeEntry: body}, nil)
}

// Update sends one queued update verbatim.
func (c *Client) Update(ctx context.Context, path string, body domain.EntryBody) error {
	return c.do(ctx, http.MethodPut, path, entryEnvelope{TimeEntry: body}, nil)
}

// Delete sends one queued delete verbatim.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListWeek fetches the caller's time entries for one week, following the
// server's offset pagination until total_count is reached. Entries the grid
// cannot hold, such as project-level entries without an issue, are skipped.
func (c *Client) ListWeek(ctx context.Context, week domain.Week) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	offset := 0
	for {
		env, err := c.listPage(ctx, week, offset)
		if err != nil {
			return nil, err
		}
		for _, dto := range env.TimeEntries {
			entry, err := dto.toDomain()
			if err != nil {
				c.logger.Debug("skipping remote entry", "entry_id", dto.ID, "err", err)
				continue
			}
			entries = append(entries, entry)
		}
		offset += len(env.TimeEntries)
		if len(env.TimeEntries) == 0 || offset >= env.TotalCount {
			return entries, nil
		}
	}
}

func (c *Client) listPage(ctx context.Context, week domain.Week, offset int) (listEnvelope, error) {
	query := url.Values{}
	query.Set("user_id", c.userID)
	query.Set("from", week.String())
	query.Set("to", week.End().Format(domain.DateLayout))
	query.Set("limit", strconv.Itoa(c.pageSize))
	query.Set("offset", strconv.Itoa(offset))

	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, domain.EntriesPath+"?"+query.Encode(), nil, &env); err != nil {
		return listEnvelope{}, err
	}
	return env, nil
}

// ListActivities fetches the activity catalog, dropping inactive entries.
func (c *Client) ListActivities(ctx context.Context) ([]domain.Activity, error) {
	var env activitiesEnvelope
	if err := c.do(ctx, http.MethodGet, activitiesPath, nil, &env); err != nil {
		return nil, err
	}
	activities := make([]domain.Activity, 0, len(env.Activities))
	for _, dto := range env.Activities {
		if !dto.Active {
			continue
		}
		activities = append(activities, domain.Activity{ID: dto.ID, Name: dto.Name})
	}
	return activities, nil
}

func (dto entryDTO) toDomain() (domain.TimeEntry, error) {
	spentOn, err := time.Parse(domain.DateLayout, dto.SpentOn)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("parse spent_on %q: %w", dto.SpentOn, domain.ErrInvalidDate)
	}
	return domain.NewTimeEntry(domain.TimeEntryInput{
		ID:           dto.ID,
		ProjectID:    dto.Project.ID,
		IssueID:      dto.Issue.ID,
		ActivityID:   dto.Activity.ID,
		SpentOn:      spentOn,
		Hours:        dto.Hours,
		Comment:      dto.Comments,
		ProjectName:  dto.Project.Name,
		ActivityName: dto.Activity.Name,
	})
}

// do performs one request against the server, decoding a JSON response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode, Messages: readErrorMessages(resp.Body)}
		c.logger.Warn("remote request failed", "method", method, "path", path, "status", resp.StatusCode)
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func readErrorMessages(r io.Reader) []string {
	var env errorEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil
	}
	return env.Errors
}
