package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Campaign is a marketing campaign with its delivery counters.
type Campaign struct {
	CampaignID     string  `json:"campaign_id"`
	AgentID        string  `json:"agent_id,omitempty"`
	CampaignName   string  `json:"campaign_name"`
	CampaignType   string  `json:"campaign_type"`
	CampaignGoal   string  `json:"campaign_goal,omitempty"`
	Description    string  `json:"description,omitempty"`
	Status         string  `json:"status"`
	TotalSent      int     `json:"total_sent"`
	TotalDelivered int     `json:"total_delivered"`
	TotalOpened    int     `json:"total_opened"`
	TotalClicked   int     `json:"total_clicked"`
	TotalConverted int     `json:"total_converted"`
	TotalRevenue   float64 `json:"total_revenue"`
	ROIPercentage  float64 `json:"roi_percentage"`
	CreatedAt      string  `json:"created_at,omitempty"`
	UpdatedAt      string  `json:"updated_at,omitempty"`
}

// NewCampaign is the body of a campaign creation.
type NewCampaign struct {
	CampaignName   string     `json:"campaign_name"`
	CampaignType   string     `json:"campaign_type"`
	CampaignGoal   string     `json:"campaign_goal,omitempty"`
	Description    string     `json:"description,omitempty"`
	Subject        string     `json:"subject,omitempty"`
	Message        string     `json:"message"`
	PrimaryChannel string     `json:"primary_channel,omitempty"`
	Channels       []string   `json:"channels,omitempty"`
	TargetAudience string     `json:"target_audience,omitempty"`
	ScheduleType   string     `json:"schedule_type,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Budget         float64    `json:"budget,omitempty"`
}

// CampaignUpdate carries the mutable campaign fields; nil fields are unchanged.
type CampaignUpdate struct {
	CampaignName *string    `json:"campaign_name,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Subject      *string    `json:"subject,omitempty"`
	Message      *string    `json:"message,omitempty"`
	Status       *string    `json:"status,omitempty"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	Budget       *float64   `json:"budget,omitempty"`
}

// CampaignFilters narrow a campaign listing.
type CampaignFilters struct {
	Status string
	Type   string
	Limit  int
	Offset int
}

func (f CampaignFilters) values() url.Values {
	q := url.Values{}
	setIf(q, "status", f.Status)
	setIf(q, "type", f.Type)
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// CampaignService manages campaigns.
type CampaignService struct{ c *Client }

// List returns the current agent's campaigns.
func (s *CampaignService) List(ctx context.Context, f CampaignFilters) (*Page[Campaign], error) {
	return getPage[Campaign](ctx, s.c, endpoint(http.MethodGet, "/campaigns").withQuery(f.values()))
}

// Get returns one campaign.
func (s *CampaignService) Get(ctx context.Context, id string) (*Campaign, error) {
	return getData[*Campaign](ctx, s.c, endpoint(http.MethodGet, "/campaigns/{id}", id))
}

// Create adds a draft campaign.
func (s *CampaignService) Create(ctx context.Context, in *NewCampaign) (*Campaign, error) {
	r, err := endpoint(http.MethodPost, "/campaigns").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*Campaign](ctx, s.c, r)
}

// Update changes a campaign.
func (s *CampaignService) Update(ctx context.Context, id string, in *CampaignUpdate) (*Campaign, error) {
	r, err := endpoint(http.MethodPut, "/campaigns/{id}", id).withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*Campaign](ctx, s.c, r)
}

// Launch starts sending a campaign.
func (s *CampaignService) Launch(ctx context.Context, id string) error {
	return exec(ctx, s.c, endpoint(http.MethodPost, "/campaigns/{id}/launch", id))
}
