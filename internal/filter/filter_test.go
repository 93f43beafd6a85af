package filter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/stretchr/testify/assert"
)

func sampleArtifacts() []types.Artifact {
	return []types.Artifact{
		{Name: "ResumeA", Date: "2024-01-05"},
		{Name: "ResumeB", Date: "2024-01-05", JDURL: "https://jobs.example.com/b"},
		{Name: "ResumeC", Date: "2024-02-01"},
		{Name: "Front-End Engineer", Date: "2023-12-31"},
		{Name: "backend_engineer", Date: "2024-01-20"},
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Front-End Engineer", "frontendengineer"},
		{"frontend engineer", "frontendengineer"},
		{"FRONT_END engineer", "frontendengineer"},
		{"  tabs\tand\nnewlines ", "tabsandnewlines"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestApply_NormalizationEquivalence(t *testing.T) {
	items := []types.Artifact{{Name: "Front-End Engineer", Date: "2024-01-01"}}

	for _, query := range []string{"frontend engineer", "FRONT_END engineer", "front end", "END-ENG"} {
		t.Run(query, func(t *testing.T) {
			got := Apply(items, types.FilterCriteria{Text: query})
			if diff := cmp.Diff(items, got); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	assert.Empty(t, Apply(items, types.FilterCriteria{Text: "backend"}))
}

func TestApply_Identity(t *testing.T) {
	items := sampleArtifacts()
	got := Apply(items, types.FilterCriteria{})
	if diff := cmp.Diff(items, got); diff != "" {
		t.Errorf("empty criteria should be identity (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]types.Artifact(nil), Apply(nil, types.FilterCriteria{}), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("nil input (-want +got):\n%s", diff)
	}
}

func TestApply_Idempotent(t *testing.T) {
	criteria := []types.FilterCriteria{
		{},
		{Text: "resume"},
		{StartDate: "2024-01-01"},
		{EndDate: "2024-01-31", Text: "engineer"},
		{StartDate: "2024-01-05", EndDate: "2024-01-05"},
	}

	for _, c := range criteria {
		once := Apply(sampleArtifacts(), c)
		twice := Apply(once, c)
		if diff := cmp.Diff(once, twice, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("criteria %+v not idempotent (-once +twice):\n%s", c, diff)
		}
	}
}

func TestApply_StableOrder(t *testing.T) {
	items := []types.Artifact{
		{Name: "zeta", Date: "2024-03-01"},
		{Name: "alpha", Date: "2024-01-01"},
		{Name: "mu", Date: "2024-02-01"},
	}
	got := Apply(items, types.FilterCriteria{StartDate: "2024-01-01"})
	want := []string{"zeta", "alpha", "mu"}
	names := make([]string, 0, len(got))
	for _, a := range got {
		names = append(names, a.Name)
	}
	assert.Equal(t, want, names)
}

func TestApply_InvertedBoundsYieldEmpty(t *testing.T) {
	got := Apply(sampleArtifacts(), types.FilterCriteria{StartDate: "2024-02-01", EndDate: "2024-01-01"})
	assert.Empty(t, got)
}

func TestApply_InclusiveBounds(t *testing.T) {
	got := Apply(sampleArtifacts(), types.FilterCriteria{StartDate: "2024-01-05", EndDate: "2024-02-01"})
	assert.Len(t, got, 4)
}

func TestApply_DateRangeScenario(t *testing.T) {
	items := []types.Artifact{
		{Name: "ResumeA", Date: "2024-01-05"},
		{Name: "ResumeB", Date: "2024-01-05"},
		{Name: "ResumeC", Date: "2024-02-01"},
	}

	got := Apply(items, types.FilterCriteria{StartDate: "2024-01-01", EndDate: "2024-01-31"})

	want := []types.Artifact{
		{Name: "ResumeA", Date: "2024-01-05"},
		{Name: "ResumeB", Date: "2024-01-05"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, map[string]int{"2024-01-05": 2}, CountByDate(got))
}

func TestCountByDate(t *testing.T) {
	assert.Equal(t, map[string]int{
		"2024-01-05": 2,
		"2024-02-01": 1,
		"2023-12-31": 1,
		"2024-01-20": 1,
	}, CountByDate(sampleArtifacts()))
	assert.Empty(t, CountByDate(nil))
}
