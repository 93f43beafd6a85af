// Package vault is the filesystem-backed artifact collection of the reference
// store. Each bidder has a directory of day folders:
//
//	<root>/<bidderID>/<YYYY-MM-DD>/<name>.docx
//	<root>/<bidderID>/<YYYY-MM-DD>/<name>.txt
//	<root>/<bidderID>/<YYYY-MM-DD>/<name>.json   {"jdUrl": "..."}
package vault

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/resume-vault/internal/types"
)

// ErrNotFound is returned when no matching artifact or day exists.
var ErrNotFound = errors.New("not found")

// ErrInvalidName is returned for path components that could escape the root.
var ErrInvalidName = errors.New("invalid name")

// metaExt holds the sidecar with the job description URL.
const metaExt = ".json"

type meta struct {
	JDURL string `json:"jdUrl,omitempty"`
}

// Vault stores artifacts under a root directory.
type Vault struct {
	root string
}

// New opens (creating if needed) a vault at root.
func New(root string) (*Vault, error) {
	if root == "" {
		return nil, fmt.Errorf("vault root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create vault root: %w", err)
	}
	return &Vault{root: root}, nil
}

// Root returns the vault directory.
func (v *Vault) Root() string {
	return v.root
}

func component(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, s)
	}
	return nil
}

func validDate(date string) error {
	if _, err := time.Parse(types.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidName, date)
	}
	return nil
}

func (v *Vault) subjectDir(subject string) (string, error) {
	if err := component(subject); err != nil {
		return "", err
	}
	return filepath.Join(v.root, subject), nil
}

// Put stores one artifact. jd is the job description text; jdURL may be empty.
func (v *Vault) Put(subject, date, name string, docx, jd []byte, jdURL string) error {
	dir, err := v.subjectDir(subject)
	if err != nil {
		return err
	}
	if err := validDate(date); err != nil {
		return err
	}
	if err := component(name); err != nil {
		return err
	}
	day := filepath.Join(dir, date)
	if err := os.MkdirAll(day, 0o755); err != nil {
		return fmt.Errorf("create day folder: %w", err)
	}
	files := map[string][]byte{
		string(types.ExtDocx): docx,
		string(types.ExtTxt):  jd,
	}
	if jdURL != "" {
		data, err := json.Marshal(meta{JDURL: jdURL})
		if err != nil {
			return err
		}
		files[metaExt] = data
	}
	for ext, data := range files {
		if err := os.WriteFile(filepath.Join(day, name+ext), data, 0o644); err != nil {
			return fmt.Errorf("write %s%s: %w", name, ext, err)
		}
	}
	return nil
}

// all returns the subject's artifacts sorted by date descending, then name.
func (v *Vault) all(subject string) ([]types.Artifact, error) {
	dir, err := v.subjectDir(subject)
	if err != nil {
		return nil, err
	}
	days, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []types.Artifact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subject folder: %w", err)
	}

	items := []types.Artifact{}
	for _, day := range days {
		if !day.IsDir() || validDate(day.Name()) != nil {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(dir, day.Name()))
		if err != nil {
			return nil, fmt.Errorf("read day folder: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != string(types.ExtDocx) {
				continue
			}
			name := strings.TrimSuffix(e.Name(), string(types.ExtDocx))
			items = append(items, types.Artifact{
				Name:  name,
				Date:  day.Name(),
				JDURL: readMeta(filepath.Join(dir, day.Name(), name+metaExt)).JDURL,
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date > items[j].Date
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

func readMeta(path string) meta {
	var m meta
	data, err := os.ReadFile(path)
	if err == nil {
		_ = json.Unmarshal(data, &m)
	}
	return m
}

// List returns one page of the subject's artifacts. dateCounts covers every
// date on the page and counts that date across the whole collection.
func (v *Vault) List(subject string, page, limit int) (*types.Page, error) {
	if page < 1 || limit < 1 {
		return nil, fmt.Errorf("page and limit must be positive")
	}
	items, err := v.all(subject)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, a := range items {
		totals[a.Date]++
	}

	start := min((page-1)*limit, len(items))
	end := min(start+limit, len(items))
	pageItems := append([]types.Artifact{}, items[start:end]...)

	counts := make(map[string]int)
	for _, a := range pageItems {
		counts[a.Date] = totals[a.Date]
	}

	return &types.Page{
		Items:      pageItems,
		Page:       page,
		PageSize:   limit,
		TotalPages: max(1, (len(items)+limit-1)/limit),
		DateCounts: counts,
	}, nil
}

// Remove deletes every file of the named artifact in every day folder and
// reports how many artifacts were removed.
func (v *Vault) Remove(subject, name string) (int, error) {
	if err := component(name); err != nil {
		return 0, err
	}
	items, err := v.all(subject)
	if err != nil {
		return 0, err
	}
	dir, _ := v.subjectDir(subject)

	removed := 0
	for _, a := range items {
		if a.Name != name {
			continue
		}
		for _, ext := range []string{string(types.ExtDocx), string(types.ExtTxt), metaExt} {
			err := os.Remove(filepath.Join(dir, a.Date, name+ext))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return removed, fmt.Errorf("remove %s%s: %w", name, ext, err)
			}
		}
		removed++
	}
	if removed == 0 {
		return 0, fmt.Errorf("artifact %q: %w", name, ErrNotFound)
	}
	return removed, nil
}

// Open opens one file of the named artifact from the newest day holding it.
// The caller closes the file.
func (v *Vault) Open(subject, name string, ext types.Extension) (*os.File, error) {
	if err := component(name); err != nil {
		return nil, err
	}
	if ext != types.ExtDocx && ext != types.ExtTxt {
		return nil, fmt.Errorf("%w: extension %q", ErrInvalidName, ext)
	}
	items, err := v.all(subject)
	if err != nil {
		return nil, err
	}
	dir, _ := v.subjectDir(subject)
	for _, a := range items {
		if a.Name != name {
			continue
		}
		f, err := os.Open(filepath.Join(dir, a.Date, name+string(ext)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("artifact %q: %w", name, ErrNotFound)
}

// HasDate reports whether the subject has any artifact on date.
func (v *Vault) HasDate(subject, date string) (bool, error) {
	if err := validDate(date); err != nil {
		return false, err
	}
	items, err := v.all(subject)
	if err != nil {
		return false, err
	}
	for _, a := range items {
		if a.Date == date {
			return true, nil
		}
	}
	return false, nil
}

// WriteArchive writes a zip of every file of date's artifacts to w and returns
// the number of files added. Callers check HasDate first so that a missing
// day can still be answered with an error status.
func (v *Vault) WriteArchive(w io.Writer, subject, date string) (int, error) {
	if err := validDate(date); err != nil {
		return 0, err
	}
	dir, err := v.subjectDir(subject)
	if err != nil {
		return 0, err
	}
	day := filepath.Join(dir, date)
	entries, err := os.ReadDir(day)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("day %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read day folder: %w", err)
	}

	zw := zip.NewWriter(w)
	added := 0
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != string(types.ExtDocx) && ext != string(types.ExtTxt)) {
			continue
		}
		if err := addFile(zw, filepath.Join(day, e.Name()), e.Name()); err != nil {
			return added, err
		}
		added++
	}
	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("finish archive: %w", err)
	}
	return added, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}
