// Package observability provides formatted CLI output and Prometheus metrics.
package observability

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jonathan/resume-vault/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxNameWidth bounds the name column of artifact tables
	maxNameWidth = 40
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// PrintRows outputs one page of artifact rows grouped by date, followed by the
// archive label at the end of each date group.
func (p *Printer) PrintRows(title string, rows []types.ArtifactRow, page *types.Page) {
	var sb strings.Builder
	if page != nil {
		sb.WriteString(fmt.Sprintf("Page %d of %d  (page size %d)\n", page.Page, max(page.TotalPages, 1), page.PageSize))
		sb.WriteString("\n")
	}

	if len(rows) == 0 {
		sb.WriteString("No artifacts match.")
		p.printBox(title, sb.String())
		return
	}

	for _, row := range rows {
		line := fmt.Sprintf("%s  %-*s", row.Date, maxNameWidth, truncate(row.Name, maxNameWidth))
		if row.JDURL != "" {
			line += "  [jd]"
		}
		sb.WriteString(line + "\n")
		if row.LastOfDate && row.ArchiveLabel != "" {
			sb.WriteString(fmt.Sprintf("            ⤓ %s\n", row.ArchiveLabel))
		}
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDateCounts outputs a date -> count table, newest date first.
func (p *Printer) PrintDateCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	slices.Sort(dates)
	slices.Reverse(dates)

	var sb strings.Builder
	for _, d := range dates {
		sb.WriteString(fmt.Sprintf("%s  %d\n", d, counts[d]))
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintUsers outputs account records for the admin commands.
func (p *Printer) PrintUsers(title string, users []types.User) {
	var sb strings.Builder
	if len(users) == 0 {
		sb.WriteString("No users.")
	}
	for _, u := range users {
		line := fmt.Sprintf("%-10s %-24s %s", u.Role, truncate(u.Username, 24), u.ID)
		if u.DeveloperID != "" {
			line += fmt.Sprintf("  → %s", u.DeveloperID)
		}
		sb.WriteString(line + "\n")
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPrincipal outputs the signed-in principal and what it may do.
func (p *Printer) PrintPrincipal(principal types.Principal, expires string) {
	if principal == nil {
		p.printBox("SESSION", "Not signed in.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("User:     %s\n", principal.Username()))
	sb.WriteString(fmt.Sprintf("ID:       %s\n", principal.ID()))
	sb.WriteString(fmt.Sprintf("Role:     %s\n", principal.Role()))
	if expires != "" {
		sb.WriteString(fmt.Sprintf("Expires:  %s\n", expires))
	}
	if caps := types.CapabilitiesOf(principal).Names(); len(caps) > 0 {
		sb.WriteString(fmt.Sprintf("Can:      %s\n", strings.Join(caps, ", ")))
	}
	p.printBox("SESSION", strings.TrimSuffix(sb.String(), "\n"))
}
