package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jonathan/resume-vault/internal/schemas"
	"github.com/jonathan/resume-vault/internal/scope"
	"github.com/jonathan/resume-vault/internal/types"
	schemafiles "github.com/jonathan/resume-vault/schemas"
)

// maxListBody bounds a list response.
const maxListBody = 8 << 20

// endpoints picks the endpoint family for s, refusing scopes that have no subject.
func endpoints(op string, s types.Scope) (scope.Endpoints, error) {
	if s.SubjectID == "" {
		return scope.Endpoints{}, fmt.Errorf("%s: %w", op, scope.ErrSuppressed)
	}
	switch s.Role {
	case types.RoleBidder, types.RoleDeveloper:
		return scope.EndpointsFor(s), nil
	default:
		return scope.Endpoints{}, fmt.Errorf("%s: %w", op, scope.ErrNoArtifactScope)
	}
}

// Download is an open byte stream from a download endpoint. The caller must
// close Body.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Close releases the underlying response body.
func (d *Download) Close() error {
	if d == nil || d.Body == nil {
		return nil
	}
	return d.Body.Close()
}

// List fetches one page of the scope's artifacts. totalPages and dateCounts are
// passed through as the store reports them.
func (c *Client) List(ctx context.Context, s types.Scope, page, pageSize int) (*types.Page, error) {
	q := types.ListQuery{Page: page, Limit: pageSize}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list: %s", types.ValidationMessage(err))
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(pageSize))

	ep, err := endpoints("list", s)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, "list", http.MethodGet, ep.List, query, nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListBody))
	if err != nil {
		return nil, &TransportError{Op: "list", URL: resp.Request.URL.String(), Cause: err}
	}
	if c.opts.ValidateResponses {
		if err := schemas.ValidateEmbedded(schemafiles.ArtifactPage, data); err != nil {
			return nil, fmt.Errorf("list: malformed response: %w", err)
		}
	}

	var out types.Page
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("list: decode response: %w", err)
	}
	if out.Items == nil {
		out.Items = []types.Artifact{}
	}
	if out.Page == 0 {
		out.Page = page
	}
	if out.PageSize == 0 {
		out.PageSize = pageSize
	}
	return &out, nil
}

// Remove deletes an artifact by name. Callers confirm first and refetch the
// current page afterwards.
func (c *Client) Remove(ctx context.Context, s types.Scope, name string) error {
	req := types.DeleteRequest{Name: name}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("delete: %s", types.ValidationMessage(err))
	}
	ep, err := endpoints("delete", s)
	if err != nil {
		return err
	}
	return c.Call(ctx, "delete", http.MethodPost, ep.Delete, nil, req, nil)
}

// DownloadOne opens one physical file of an artifact. The local filename is
// name+ext.
func (c *Client) DownloadOne(ctx context.Context, s types.Scope, name string, ext types.Extension) (*Download, error) {
	req := types.DownloadRequest{Name: name, Ext: ext}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("download: %s", types.ValidationMessage(err))
	}

	query := url.Values{}
	query.Set("filePath", name)
	query.Set("ext", string(ext))

	ep, err := endpoints("download", s)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, "download", http.MethodGet, ep.Download, query, nil)
	if err != nil {
		return nil, err
	}
	return &Download{
		Filename:    types.Artifact{Name: name}.Filename(ext),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

// ArchiveFilename is the local filename of a whole-day archive.
func ArchiveFilename(date string) string {
	return date + "-resumes.zip"
}

// DownloadArchive opens the archive of every artifact produced on date. The
// declared content type is returned unchecked.
func (c *Client) DownloadArchive(ctx context.Context, s types.Scope, date string) (*Download, error) {
	req := types.ArchiveRequest{Date: date}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("archive: %s", types.ValidationMessage(err))
	}

	query := url.Values{}
	query.Set("date", date)

	ep, err := endpoints("archive", s)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, "archive", http.MethodGet, ep.Archive, query, nil)
	if err != nil {
		return nil, err
	}
	return &Download{
		Filename:    ArchiveFilename(date),
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}
