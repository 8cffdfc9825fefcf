package api

import (
	"context"
	"net/http"
	"net/url"
)

// ReportType names a report the backend can generate.
type ReportType string

const (
	ReportCustomerSummary  ReportType = "customer_summary"
	ReportPolicySummary    ReportType = "policy_summary"
	ReportAgentPerformance ReportType = "agent_performance"
	ReportRevenueAnalysis  ReportType = "revenue_analysis"
	ReportImportStatistics ReportType = "import_statistics"
	ReportCustom           ReportType = "custom"
)

// ReportFormat is the file format of a generated report.
type ReportFormat string

const (
	FormatPDF   ReportFormat = "pdf"
	FormatExcel ReportFormat = "excel"
	FormatCSV   ReportFormat = "csv"
)

// ReportFilters are passed through to the report generator. Well-known keys
// are dateFrom, dateTo, agentCode and status.
type ReportFilters map[string]any

// Report is a generated or pending report.
type Report struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        ReportType    `json:"type"`
	Status      string        `json:"status"`
	Filters     ReportFilters `json:"filters,omitempty"`
	Format      ReportFormat  `json:"format"`
	CreatedAt   string        `json:"createdAt"`
	CompletedAt string        `json:"completedAt,omitempty"`
	DownloadURL string        `json:"downloadUrl,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// ScheduleConfig says when a scheduled report runs. Time is HH:mm.
type ScheduleConfig struct {
	Frequency  string `json:"frequency"`
	DayOfWeek  *int   `json:"dayOfWeek,omitempty"`
	DayOfMonth *int   `json:"dayOfMonth,omitempty"`
	Time       string `json:"time"`
}

// ScheduledReport is a report generated on a schedule and mailed out.
type ScheduledReport struct {
	ID         string         `json:"id,omitempty"`
	ReportType ReportType     `json:"reportType"`
	Name       string         `json:"name"`
	Schedule   ScheduleConfig `json:"schedule"`
	Filters    ReportFilters  `json:"filters,omitempty"`
	Format     ReportFormat   `json:"format"`
	Recipients []string       `json:"recipients"`
	IsActive   bool           `json:"isActive"`
	LastRun    string         `json:"lastRun,omitempty"`
	NextRun    string         `json:"nextRun,omitempty"`
}

// ReportTypeInfo describes one available report type.
type ReportTypeInfo struct {
	Type        ReportType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// ReportService generates and schedules reports.
type ReportService struct{ c *Client }

// Generate starts generating a report.
func (s *ReportService) Generate(ctx context.Context, typ ReportType, filters ReportFilters, format ReportFormat) (*Report, error) {
	if format == "" {
		format = FormatPDF
	}
	if filters == nil {
		filters = ReportFilters{}
	}
	r, err := endpoint(http.MethodPost, "/reports/generate").withJSON(map[string]any{
		"type":    typ,
		"filters": filters,
		"format":  format,
	})
	if err != nil {
		return nil, err
	}
	return getData[*Report](ctx, s.c, r)
}

// Get returns a report's current status.
func (s *ReportService) Get(ctx context.Context, id string) (*Report, error) {
	return getData[*Report](ctx, s.c, endpoint(http.MethodGet, "/reports/{id}", id))
}

// History pages through previously generated reports.
func (s *ReportService) History(ctx context.Context, opts ListOptions) (*Page[Report], error) {
	q := url.Values{}
	opts.apply(q)
	return getPage[Report](ctx, s.c, endpoint(http.MethodGet, "/reports/history").withQuery(q))
}

// Download fetches a completed report file.
func (s *ReportService) Download(ctx context.Context, id string) (*Download, error) {
	return download(ctx, s.c, endpoint(http.MethodGet, "/reports/{id}/download", id), "report-"+id)
}

// Types lists the report types the backend offers.
func (s *ReportService) Types(ctx context.Context) ([]ReportTypeInfo, error) {
	return getData[[]ReportTypeInfo](ctx, s.c, endpoint(http.MethodGet, "/reports/types"))
}

// Scheduled lists scheduled reports.
func (s *ReportService) Scheduled(ctx context.Context) ([]ScheduledReport, error) {
	return getData[[]ScheduledReport](ctx, s.c, endpoint(http.MethodGet, "/reports/scheduled"))
}

// CreateScheduled adds a scheduled report.
func (s *ReportService) CreateScheduled(ctx context.Context, in *ScheduledReport) (*ScheduledReport, error) {
	r, err := endpoint(http.MethodPost, "/reports/scheduled").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*ScheduledReport](ctx, s.c, r)
}

// UpdateScheduled replaces a scheduled report.
func (s *ReportService) UpdateScheduled(ctx context.Context, id string, in *ScheduledReport) (*ScheduledReport, error) {
	r, err := endpoint(http.MethodPut, "/reports/scheduled/{id}", id).withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*ScheduledReport](ctx, s.c, r)
}

// DeleteScheduled removes a scheduled report.
func (s *ReportService) DeleteScheduled(ctx context.Context, id string) error {
	return exec(ctx, s.c, endpoint(http.MethodDelete, "/reports/scheduled/{id}", id))
}
