package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/agentmitra/portalctl/internal/dataimport"
	"github.com/agentmitra/portalctl/internal/errors"
)

// UploadOptions are sent alongside an uploaded file.
type UploadOptions struct {
	Delimiter  string `json:"delimiter,omitempty"`
	HasHeaders bool   `json:"hasHeaders"`
	Encoding   string `json:"encoding,omitempty"`
	SkipRows   int    `json:"skipRows,omitempty"`
	SheetName  string `json:"sheetName,omitempty"`
}

// ImportService drives server-side imports and manages import templates.
type ImportService struct{ c *Client }

var _ dataimport.Importer = (*ImportService)(nil)

// Templates lists import templates.
func (s *ImportService) Templates(ctx context.Context) ([]dataimport.ImportTemplate, error) {
	out, err := getData[[]dataimport.ImportTemplate](ctx, s.c, endpoint(http.MethodGet, "/import/templates"))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []dataimport.ImportTemplate{}
	}
	return out, nil
}

// Template returns the template with id from the template list.
func (s *ImportService) Template(ctx context.Context, id string) (*dataimport.ImportTemplate, error) {
	all, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id || all[i].Name == id {
			return &all[i], nil
		}
	}
	return nil, errors.NewAPIError(http.StatusNotFound, "import template "+id+" not found")
}

// CreateTemplate adds a template.
func (s *ImportService) CreateTemplate(ctx context.Context, in *dataimport.ImportTemplate) (*dataimport.ImportTemplate, error) {
	r, err := endpoint(http.MethodPost, "/import/templates").withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*dataimport.ImportTemplate](ctx, s.c, r)
}

// UpdateTemplate replaces a template.
func (s *ImportService) UpdateTemplate(ctx context.Context, id string, in *dataimport.ImportTemplate) (*dataimport.ImportTemplate, error) {
	r, err := endpoint(http.MethodPut, "/import/templates/{id}", id).withJSON(in)
	if err != nil {
		return nil, err
	}
	return getData[*dataimport.ImportTemplate](ctx, s.c, r)
}

// DeleteTemplate removes a template.
func (s *ImportService) DeleteTemplate(ctx context.Context, id string) error {
	return exec(ctx, s.c, endpoint(http.MethodDelete, "/import/templates/{id}", id))
}

// Upload sends a file for server-side parsing as multipart form data.
func (s *ImportService) Upload(ctx context.Context, name string, content io.Reader, opts *UploadOptions) (*dataimport.ImportFile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAPIRequest, "failed to build upload", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read "+name, err)
	}
	if opts != nil {
		encoded, err := json.Marshal(opts)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeAPIRequest, "failed to encode upload options", err)
		}
		if err := mw.WriteField("options", string(encoded)); err != nil {
			return nil, errors.Wrap(errors.ErrCodeAPIRequest, "failed to build upload", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeAPIRequest, "failed to build upload", err)
	}

	r := endpoint(http.MethodPost, "/import/upload")
	r.body = buf.Bytes()
	r.contentType = mw.FormDataContentType()
	return getData[*dataimport.ImportFile](ctx, s.c, r)
}

// Process asks the server to parse an uploaded file with a template.
func (s *ImportService) Process(ctx context.Context, fileID, templateID string) (*dataimport.ImportFile, error) {
	r, err := endpoint(http.MethodPost, "/import/process/{fileId}", fileID).withJSON(templateBody(templateID))
	if err != nil {
		return nil, err
	}
	return getData[*dataimport.ImportFile](ctx, s.c, r)
}

// Validate runs the server's full rule set against an uploaded file.
func (s *ImportService) Validate(ctx context.Context, fileID, templateID string) (*dataimport.ImportResult, error) {
	r, err := endpoint(http.MethodPost, "/import/validate/{fileId}", fileID).withJSON(templateBody(templateID))
	if err != nil {
		return nil, err
	}
	return getData[*dataimport.ImportResult](ctx, s.c, r)
}

func templateBody(templateID string) map[string]string {
	if templateID == "" {
		return map[string]string{}
	}
	return map[string]string{"templateId": templateID}
}

// ImportData submits rows for import. It satisfies dataimport.Importer.
func (s *ImportService) ImportData(ctx context.Context, req dataimport.Request) (*dataimport.Response, error) {
	r, err := endpoint(http.MethodPost, "/import/data").withJSON(req)
	if err != nil {
		return nil, err
	}
	resp, err := getData[*dataimport.Response](ctx, s.c, r)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New(errors.ErrCodeAPIDecode, "import response had no data")
	}
	return resp, nil
}

// Status returns the progress or outcome of an import.
func (s *ImportService) Status(ctx context.Context, importID string) (*dataimport.ImportResult, error) {
	return getData[*dataimport.ImportResult](ctx, s.c, endpoint(http.MethodGet, "/import/status/{id}", importID))
}

// History pages through past imports.
func (s *ImportService) History(ctx context.Context, opts ListOptions) (*Page[dataimport.HistoryItem], error) {
	q := url.Values{}
	opts.apply(q)
	return getPage[dataimport.HistoryItem](ctx, s.c, endpoint(http.MethodGet, "/import/history").withQuery(q))
}

// EntityFields lists the target fields accepted for an entity type.
func (s *ImportService) EntityFields(ctx context.Context, entity dataimport.EntityType) ([]dataimport.EntityField, error) {
	return getData[[]dataimport.EntityField](ctx, s.c, endpoint(http.MethodGet, "/import/entity-fields/{type}", string(entity)))
}

// SampleData returns the server's example rows for an entity type.
func (s *ImportService) SampleData(ctx context.Context, entity dataimport.EntityType) ([]dataimport.Row, error) {
	return getData[[]dataimport.Row](ctx, s.c, endpoint(http.MethodGet, "/import/sample-data/{type}", string(entity)))
}

// DownloadTemplate fetches a blank spreadsheet for an entity type.
func (s *ImportService) DownloadTemplate(ctx context.Context, entity dataimport.EntityType) (*Download, error) {
	r := endpoint(http.MethodGet, "/import/templates/{type}/download", string(entity))
	return download(ctx, s.c, r, string(entity)+"-template.xlsx")
}

// DownloadResults fetches the row-level outcome of an import.
func (s *ImportService) DownloadResults(ctx context.Context, importID string) (*Download, error) {
	r := endpoint(http.MethodGet, "/import/results/{id}/download", importID)
	return download(ctx, s.c, r, "import-"+importID+"-results.csv")
}
