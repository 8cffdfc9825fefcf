package api

import (
	"context"
	"net/http"
	"net/url"
)

// Customer is a policyholder record.
type Customer struct {
	ID           string  `json:"id"`
	FullName     string  `json:"fullName"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	DateOfBirth  string  `json:"dateOfBirth,omitempty"`
	Gender       string  `json:"gender,omitempty"`
	Occupation   string  `json:"occupation,omitempty"`
	AnnualIncome float64 `json:"annualIncome,omitempty"`
	Address      string  `json:"address,omitempty"`
	City         string  `json:"city,omitempty"`
	State        string  `json:"state,omitempty"`
	Pincode      string  `json:"pincode,omitempty"`
	AgentCode    string  `json:"agentCode,omitempty"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"createdAt,omitempty"`
	UpdatedAt    string  `json:"updatedAt,omitempty"`
}

// CustomerFilters narrow a customer listing or export.
type CustomerFilters struct {
	Search    string
	Status    string
	AgentCode string
	City      string
	State     string
	DateFrom  string
	DateTo    string
}

func (f CustomerFilters) values() url.Values {
	q := url.Values{}
	setIf(q, "search", f.Search)
	setIf(q, "status", f.Status)
	setIf(q, "agentCode", f.AgentCode)
	setIf(q, "city", f.City)
	setIf(q, "state", f.State)
	setIf(q, "dateFrom", f.DateFrom)
	setIf(q, "dateTo", f.DateTo)
	return q
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// ExportFormat is a customer export format.
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportExcel ExportFormat = "excel"
	ExportPDF   ExportFormat = "pdf"
)

// CustomerService manages customers.
type CustomerService struct{ c *Client }

// List returns one page of customers.
func (s *CustomerService) List(ctx context.Context, opts ListOptions, f CustomerFilters) (*Page[Customer], error) {
	q := f.values()
	opts.apply(q)
	return getPage[Customer](ctx, s.c, endpoint(http.MethodGet, "/customers").withQuery(q))
}

// Get returns one customer.
func (s *CustomerService) Get(ctx context.Context, id string) (*Customer, error) {
	return getData[*Customer](ctx, s.c, endpoint(http.MethodGet, "/customers/{id}", id))
}

// Create adds a customer.
func (s *CustomerService) Create(ctx context.Context, in *Customer) (*Customer, error) {
	r, err := endpoint(http.MethodPost, "/customers").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*Customer](ctx, s.c, r)
}

// Update applies fields to a customer. Only non-empty fields are sent.
func (s *CustomerService) Update(ctx context.Context, id string, fields map[string]any) (*Customer, error) {
	r, err := endpoint(http.MethodPut, "/customers/{id}", id).withJSON(fields)
	if err != nil {
		return nil, err
	}
	return getData[*Customer](ctx, s.c, r)
}

// Delete removes a customer.
func (s *CustomerService) Delete(ctx context.Context, id string) error {
	return exec(ctx, s.c, endpoint(http.MethodDelete, "/customers/{id}", id))
}

// BulkDelete removes several customers.
func (s *CustomerService) BulkDelete(ctx context.Context, ids []string) error {
	r, err := endpoint(http.MethodPost, "/customers/bulk/delete").withJSON(map[string]any{"ids": ids})
	if err != nil {
		return err
	}
	return exec(ctx, s.c, r)
}

// BulkUpdate applies the same fields to several customers.
func (s *CustomerService) BulkUpdate(ctx context.Context, ids []string, fields map[string]any) error {
	r, err := endpoint(http.MethodPost, "/customers/bulk/update").withJSON(map[string]any{"ids": ids, "updates": fields})
	if err != nil {
		return err
	}
	return exec(ctx, s.c, r)
}

// Export downloads the filtered customer list in format.
func (s *CustomerService) Export(ctx context.Context, format ExportFormat, f CustomerFilters) (*Download, error) {
	q := f.values()
	q.Set("format", string(format))
	ext := string(format)
	if format == ExportExcel {
		ext = "xlsx"
	}
	return download(ctx, s.c, endpoint(http.MethodGet, "/customers/export").withQuery(q), "customers."+ext)
}
