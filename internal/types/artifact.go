// Package types provides type definitions for structured data used throughout the resume-vault system.
package types

import (
	"fmt"
	"slices"
)

// DateLayout is the ISO calendar date layout used for artifact dates and filter bounds.
const DateLayout = "2006-01-02"

// ArchiveMediaType is the only content type accepted for a whole-day archive download.
const ArchiveMediaType = "application/zip"

// Extension names one of the two physical files stored for an artifact.
type Extension string

const (
	// ExtDocx addresses the résumé document.
	ExtDocx Extension = ".docx"
	// ExtTxt addresses the source job description.
	ExtTxt Extension = ".txt"
)

// ParseExtension accepts ".docx"/".txt" (with or without the leading dot).
func ParseExtension(s string) (Extension, error) {
	switch s {
	case ".docx", "docx":
		return ExtDocx, nil
	case ".txt", "txt":
		return ExtTxt, nil
	default:
		return "", fmt.Errorf("unsupported extension %q (want .docx or .txt)", s)
	}
}

// PageSizes lists the page sizes a list query may request.
var PageSizes = []int{10, 20, 50, 100}

// DefaultPageSize is used when no page size has been chosen.
const DefaultPageSize = 10

// ValidPageSize reports whether n is one of PageSizes.
func ValidPageSize(n int) bool {
	return slices.Contains(PageSizes, n)
}

// Artifact is one résumé plus job-description pair produced on a given day.
// Name is the file stem shared by name.docx and name.txt.
type Artifact struct {
	Name  string `json:"name"`
	Date  string `json:"date"`
	JDURL string `json:"jdUrl,omitempty"`
}

// Filename returns the local filename for one of the artifact's files.
func (a Artifact) Filename(ext Extension) string {
	return a.Name + string(ext)
}

// Page is one server-backed page of artifacts. It is replaced wholesale on every
// successful list fetch.
type Page struct {
	Items      []Artifact     `json:"files"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
	DateCounts map[string]int `json:"dateCounts"`
}

// FilterCriteria narrows the current page client-side. Empty fields impose no constraint.
type FilterCriteria struct {
	Text      string `json:"text,omitempty"`
	StartDate string `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// IsEmpty reports whether the criteria impose no constraint at all.
func (c FilterCriteria) IsEmpty() bool {
	return c.Text == "" && c.StartDate == "" && c.EndDate == ""
}

// Validate checks that date bounds, when present, are ISO dates.
func (c *FilterCriteria) Validate() error {
	return validate.Struct(c)
}

// ArtifactRow is one displayed row of a filtered page. LastOfDate marks the final
// row of a run of same-date rows; ArchiveLabel is set on that row only.
type ArtifactRow struct {
	Artifact
	LastOfDate   bool
	ArchiveLabel string
}
