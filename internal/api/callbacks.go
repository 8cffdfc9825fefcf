package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// CallbackRequest is a customer's request to be called back.
type CallbackRequest struct {
	CallbackRequestID string   `json:"callback_request_id"`
	PolicyholderID    string   `json:"policyholder_id"`
	AgentID           string   `json:"agent_id,omitempty"`
	RequestType       string   `json:"request_type"`
	Description       string   `json:"description"`
	Priority          string   `json:"priority"`
	PriorityScore     float64  `json:"priority_score"`
	Status            string   `json:"status"`
	CustomerName      string   `json:"customer_name"`
	CustomerPhone     string   `json:"customer_phone"`
	CustomerEmail     string   `json:"customer_email,omitempty"`
	DueAt             string   `json:"due_at,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
	Tags              []string `json:"tags,omitempty"`
}

// NewCallback is the body of a callback creation.
type NewCallback struct {
	PolicyholderID string   `json:"policyholder_id"`
	RequestType    string   `json:"request_type"`
	Description    string   `json:"description"`
	UrgencyLevel   string   `json:"urgency_level,omitempty"`
	CustomerValue  string   `json:"customer_value,omitempty"`
	Source         string   `json:"source,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Category       string   `json:"category,omitempty"`
}

// CallbackCompletion closes a callback.
type CallbackCompletion struct {
	Resolution         string `json:"resolution,omitempty"`
	ResolutionCategory string `json:"resolution_category,omitempty"`
	SatisfactionRating *int   `json:"satisfaction_rating,omitempty"`
}

// CallbackFilters narrow a callback listing.
type CallbackFilters struct {
	Status   string
	Priority string
	Limit    int
	Offset   int
}

func (f CallbackFilters) values() url.Values {
	q := url.Values{}
	setIf(q, "status", f.Status)
	setIf(q, "priority", f.Priority)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// CallbackService manages callback requests.
type CallbackService struct{ c *Client }

// List returns callbacks ordered by priority.
func (s *CallbackService) List(ctx context.Context, f CallbackFilters) (*Page[CallbackRequest], error) {
	return getPage[CallbackRequest](ctx, s.c, endpoint(http.MethodGet, "/callbacks").withQuery(f.values()))
}

// Get returns one callback.
func (s *CallbackService) Get(ctx context.Context, id string) (*CallbackRequest, error) {
	return getData[*CallbackRequest](ctx, s.c, endpoint(http.MethodGet, "/callbacks/{id}", id))
}

// Create records a new callback request.
func (s *CallbackService) Create(ctx context.Context, in *NewCallback) (*CallbackRequest, error) {
	r, err := endpoint(http.MethodPost, "/callbacks").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*CallbackRequest](ctx, s.c, r)
}

// UpdateStatus moves a callback to status.
func (s *CallbackService) UpdateStatus(ctx context.Context, id, status string) error {
	r := endpoint(http.MethodPut, "/callbacks/{id}/status", id).withQuery(url.Values{"status_update": {status}})
	return exec(ctx, s.c, r)
}

// Assign gives a callback to agentID, or to the caller when agentID is empty.
func (s *CallbackService) Assign(ctx context.Context, id, agentID string) error {
	q := url.Values{}
	setIf(q, "agent_id", agentID)
	return exec(ctx, s.c, endpoint(http.MethodPost, "/callbacks/{id}/assign", id).withQuery(q))
}

// Complete closes a callback.
func (s *CallbackService) Complete(ctx context.Context, id string, in CallbackCompletion) error {
	r, err := endpoint(http.MethodPost, "/callbacks/{id}/complete", id).withJSON(in)
	if err != nil {
		return err
	}
	return exec(ctx, s.c, r)
}
