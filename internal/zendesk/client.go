// Package zendesk is a minimal client for the three ticketing API
// endpoints videodesk consumes: view ticket listing, bulk field update,
// and single ticket creation.
package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	perPage       = 100
	listTimeout   = 30 * time.Second
	updateTimeout = 60 * time.Second
	maxErrBody    = 512
)

// Client talks to the Zendesk REST API using Basic auth with the
// "{email}/token" convention.
type Client struct {
	client  *http.Client
	baseURL string
	email   string
	token   string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a client for the given subdomain and credentials.
func New(subdomain, email, token string, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{},
		baseURL: fmt.Sprintf("https://%s.zendesk.com/api/v2", subdomain),
		email:   email,
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TicketIDs returns every ticket id in the given view, following
// next_page cursors until the upstream reports no more pages. IDs are
// returned in upstream order; no sorting is applied.
func (c *Client) TicketIDs(ctx context.Context, viewID int64) ([]int64, error) {
	url := fmt.Sprintf("%s/views/%d/tickets.json?per_page=%d", c.baseURL, viewID, perPage)

	var ids []int64
	for url != "" {
		page, err := c.listPage(ctx, url)
		if err != nil {
			return nil, err
		}
		for _, t := range page.Tickets {
			ids = append(ids, t.ID)
		}
		url = page.NextPage
	}
	return ids, nil
}

func (c *Client) listPage(ctx context.Context, url string) (*viewTicketsPage, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Op: "list view tickets", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, "list view tickets", http.StatusOK)
	if err != nil {
		return nil, err
	}

	var page viewTicketsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &TransportError{Op: "list view tickets", Err: fmt.Errorf("decode: %w", err)}
	}
	return &page, nil
}

// UpdateMany sets one custom field to the given value on every ticket in
// ids through a single bulk call, and returns the job status URL the
// upstream hands back for polling. The caller is responsible for keeping
// len(ids) within the upstream batch limit of 100.
func (c *Client) UpdateMany(ctx context.Context, ids []int64, fieldID, value int64) (string, error) {
	if len(ids) == 0 {
		return "", &TransportError{Op: "update many", Err: fmt.Errorf("empty id list")}
	}

	payload, err := json.Marshal(updateManyRequest{
		Ticket: ticketUpdate{
			CustomFields: []customField{{ID: fieldID, Value: value}},
		},
	})
	if err != nil {
		return "", &TransportError{Op: "update many", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/tickets/update_many.json?ids=%s", c.baseURL, joinIDs(ids))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return "", &TransportError{Op: "update many", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "update many", http.StatusOK)
	if err != nil {
		return "", err
	}

	var resp updateManyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &TransportError{Op: "update many", Err: fmt.Errorf("decode: %w", err)}
	}
	return resp.JobStatus.URL, nil
}

// CreateTicket opens a single normal-priority ticket and returns its id.
func (c *Client) CreateTicket(ctx context.Context, subject, description string) (int64, error) {
	payload, err := json.Marshal(createTicketRequest{
		Ticket: newTicket{
			Subject:  subject,
			Comment:  ticketComment{Body: description},
			Priority: "normal",
		},
	})
	if err != nil {
		return 0, &TransportError{Op: "create ticket", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tickets.json", bytes.NewReader(payload))
	if err != nil {
		return 0, &TransportError{Op: "create ticket", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "create ticket", http.StatusCreated)
	if err != nil {
		return 0, err
	}

	var resp createTicketResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &TransportError{Op: "create ticket", Err: fmt.Errorf("decode: %w", err)}
	}
	return resp.Ticket.ID, nil
}

// do executes the request with Basic auth and returns the response body,
// mapping 401/403 to AuthError and any other unexpected status to
// TransportError.
func (c *Client) do(req *http.Request, op string, wantStatus int) ([]byte, error) {
	req.SetBasicAuth(c.email+"/token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Body: trimBody(body)}
	case resp.StatusCode != wantStatus:
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Body: trimBody(body)}
	}
	return body, nil
}

func trimBody(b []byte) string {
	if len(b) > maxErrBody {
		b = b[:maxErrBody]
	}
	return string(b)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// --- wire format types ---

type viewTicketsPage struct {
	Tickets []struct {
		ID int64 `json:"id"`
	} `json:"tickets"`
	NextPage string `json:"next_page"`
}

type updateManyRequest struct {
	Ticket ticketUpdate `json:"ticket"`
}

type ticketUpdate struct {
	CustomFields []customField `json:"custom_fields"`
}

type customField struct {
	ID    int64 `json:"id"`
	Value int64 `json:"value"`
}

type updateManyResponse struct {
	JobStatus struct {
		URL string `json:"url"`
	} `json:"job_status"`
}

type createTicketRequest struct {
	Ticket newTicket `json:"ticket"`
}

type newTicket struct {
	Subject  string        `json:"subject"`
	Comment  ticketComment `json:"comment"`
	Priority string        `json:"priority"`
}

type ticketComment struct {
	Body string `json:"body"`
}

type createTicketResponse struct {
	Ticket struct {
		ID int64 `json:"id"`
	} `json:"ticket"`
}
