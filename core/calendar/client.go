package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"MeetScope/config"
)

// Event is one upcoming calendar entry. The calendar provider is an
// independent read-only collaborator; it never touches the meeting store.
type Event struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Attendees []string `json:"attendees,omitempty"`
}

// Client reads upcoming events from a Google-Calendar-style events API.
type Client struct {
	baseURL    string
	apiKey     string
	calendarID string
	httpClient *http.Client
}

// NewClient creates a calendar client from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.CalendarAPIBaseURL,
		apiKey:     cfg.CalendarAPIKey,
		calendarID: cfg.CalendarID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CalendarID returns the configured calendar identifier (used as cache key).
func (c *Client) CalendarID() string {
	return c.calendarID
}

// providerEvent mirrors the provider's event resource; start/end carry
// either dateTime (timed events) or date (all-day events).
type providerEvent struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Start   struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
	} `json:"end"`
	Attendees []struct {
		Email string `json:"email"`
	} `json:"attendees"`
}

type eventsResponse struct {
	Items []providerEvent `json:"items"`
}

// UpcomingEvents lists events starting from now, soonest first.
func (c *Client) UpcomingEvents(ctx context.Context, maxResults int) ([]Event, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar endpoint: %w", err)
	}

	q := u.Query()
	q.Set("key", c.apiKey)
	q.Set("timeMin", time.Now().UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")
	q.Set("maxResults", strconv.Itoa(maxResults))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("calendar provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode calendar response: %w", err)
	}

	events := make([]Event, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		ev := Event{
			ID:    item.ID,
			Title: item.Summary,
			Start: item.Start.DateTime,
			End:   item.End.DateTime,
		}
		if ev.Start == "" {
			ev.Start = item.Start.Date
		}
		if ev.End == "" {
			ev.End = item.End.Date
		}
		for _, a := range item.Attendees {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
		events = append(events, ev)
	}
	return events, nil
}
