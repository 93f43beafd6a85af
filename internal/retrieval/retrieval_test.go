package retrieval

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/resume-vault/internal/store"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type fakeSource struct {
	mu          sync.Mutex
	contentType string
	body        []byte
	err         error
	errFor      map[string]error
	bodies      []*trackedBody
}

func (f *fakeSource) open(filename string) *store.Download {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &trackedBody{Reader: bytes.NewReader(f.body)}
	f.bodies = append(f.bodies, b)
	return &store.Download{Filename: filename, ContentType: f.contentType, Body: b}
}

func (f *fakeSource) DownloadOne(_ context.Context, _ types.Scope, name string, ext types.Extension) (*store.Download, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.open(name + string(ext)), nil
}

func (f *fakeSource) DownloadArchive(_ context.Context, _ types.Scope, date string) (*store.Download, error) {
	if err := f.errFor[date]; err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.open(store.ArchiveFilename(date)), nil
}

func (f *fakeSource) allClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bodies {
		if !b.closed {
			return false
		}
	}
	return true
}

type countingSaver struct {
	calls int
}

func (c *countingSaver) Save(_ context.Context, filename string, r io.Reader) (string, int64, error) {
	c.calls++
	n, err := io.Copy(io.Discard, r)
	return filename, n, err
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var testScope = types.Scope{Role: types.RoleBidder, SubjectID: "b1"}

func TestDownloadArchive_DisguisedFailureIsNotSaved(t *testing.T) {
	src := &fakeSource{contentType: "text/plain", body: []byte("No resumes found for 2024-01-05")}
	saver := &countingSaver{}
	o := New(src, saver)

	res, err := o.DownloadArchive(context.Background(), testScope, "2024-01-05")
	assert.Nil(t, res)

	var disguised *store.DisguisedError
	require.ErrorAs(t, err, &disguised)
	assert.Equal(t, "No resumes found for 2024-01-05", disguised.Message)
	assert.Equal(t, "No resumes found for 2024-01-05", store.Message(err))
	assert.Equal(t, 0, saver.calls, "no file is saved for a disguised failure")
	assert.True(t, src.allClosed())
}

func TestDownloadArchive_EmptyDisguisedBody(t *testing.T) {
	src := &fakeSource{contentType: "application/json"}
	o := New(src, &countingSaver{})

	_, err := o.DownloadArchive(context.Background(), testScope, "2024-01-05")
	var disguised *store.DisguisedError
	require.ErrorAs(t, err, &disguised)
	assert.Contains(t, disguised.Message, "application/zip")
}

func TestDownloadArchive_SavesZip(t *testing.T) {
	data := zipBytes(t, map[string]string{"ResumeA.docx": "doc", "ResumeA.txt": "jd"})
	src := &fakeSource{contentType: "application/zip", body: data}
	dir := t.TempDir()
	saver, err := NewLocalDir(dir)
	require.NoError(t, err)
	o := New(src, saver)

	res, err := o.DownloadArchive(context.Background(), testScope, "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05-resumes.zip", res.Filename)
	assert.Equal(t, filepath.Join(dir, "2024-01-05-resumes.zip"), res.Path)
	assert.Equal(t, int64(len(data)), res.Bytes)
	assert.True(t, src.allClosed(), "the response body is released after the save")

	zr, err := zip.OpenReader(res.Path)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	assert.Len(t, zr.File, 2)
}

func TestDownloadArchive_SourceErrorPassesThrough(t *testing.T) {
	reqErr := &store.RequestError{Op: "archive", Status: 404, Message: "no such date"}
	o := New(&fakeSource{err: reqErr}, &countingSaver{})

	_, err := o.DownloadArchive(context.Background(), testScope, "2024-01-05")
	assert.Same(t, reqErr, err)
}

func TestIsArchive(t *testing.T) {
	tests := map[string]bool{
		"application/zip":                 true,
		"Application/ZIP":                 true,
		"application/zip; charset=binary": true,
		"application/zip; foo=bar":        true,
		"application/x-zip-compressed":    false,
		"text/plain":                      false,
		"":                                false,
		"application/zipx":                false,
	}
	for ct, want := range tests {
		assert.Equal(t, want, IsArchive(ct), ct)
	}
}

func TestDownloadOne_SavesNamePlusExtension(t *testing.T) {
	src := &fakeSource{contentType: "application/octet-stream", body: []byte("docx bytes")}
	dir := t.TempDir()
	saver, err := NewLocalDir(dir)
	require.NoError(t, err)

	res, err := New(src, saver).DownloadOne(context.Background(), testScope, "ResumeA", types.ExtDocx)
	require.NoError(t, err)
	assert.Equal(t, "ResumeA.docx", res.Filename)

	data, err := os.ReadFile(filepath.Join(dir, "ResumeA.docx"))
	require.NoError(t, err)
	assert.Equal(t, "docx bytes", string(data))
	assert.True(t, src.allClosed())
}

// overlapSource records how many archive requests are open at once.
type overlapSource struct {
	*fakeSource
	mu       sync.Mutex
	inFlight int
	peak     int
	order    []string
}

func (o *overlapSource) DownloadArchive(ctx context.Context, s types.Scope, date string) (*store.Download, error) {
	o.mu.Lock()
	o.inFlight++
	o.peak = max(o.peak, o.inFlight)
	o.order = append(o.order, date)
	o.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	o.mu.Lock()
	o.inFlight--
	o.mu.Unlock()
	return o.fakeSource.DownloadArchive(ctx, s, date)
}

func TestDownloadArchives_DatesAreIndependent(t *testing.T) {
	src := &overlapSource{fakeSource: &fakeSource{
		contentType: "application/zip",
		body:        zipBytes(t, map[string]string{"a.txt": "a"}),
		errFor:      map[string]error{"2024-01-06": errors.New("boom")},
	}}
	saver, err := NewLocalDir(t.TempDir())
	require.NoError(t, err)

	dates := []string{"2024-01-05", "2024-01-06", "2024-01-07"}
	results := New(src, saver).DownloadArchives(context.Background(), testScope, dates)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.EqualError(t, results[1].Err, "boom")
	assert.NoError(t, results[2].Err)
	assert.Equal(t, "2024-01-07", results[2].Date)

	assert.Equal(t, 1, src.peak, "archive requests for one scope must not overlap")
	assert.Equal(t, dates, src.order)
}

func TestLocalDir_Save(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocalDir(filepath.Join(dir, "downloads"))
	require.NoError(t, err)

	path, n, err := l.Save(context.Background(), "../../escape.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "downloads", "escape.txt"), path)
	assert.Equal(t, int64(5), n)

	entries, err := os.ReadDir(filepath.Join(dir, "downloads"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")

	_, _, err = l.Save(context.Background(), "", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestLocalDir_SaveCancelled(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocalDir(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = l.Save(ctx, "a.zip", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(dir, "a.zip"))
	assert.True(t, os.IsNotExist(statErr))
}
