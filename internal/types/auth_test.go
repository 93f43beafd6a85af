//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request CreateUserRequest
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid bidder",
			request: CreateUserRequest{Username: "alice", Password: "pw", Role: RoleBidder},
		},
		{
			name:    "valid developer",
			request: CreateUserRequest{Username: "bob", Password: "pw", Role: RoleDeveloper},
		},
		{
			name:    "missing username",
			request: CreateUserRequest{Password: "pw", Role: RoleBidder},
			wantErr: true,
			errMsg:  "required",
		},
		{
			name:    "admin role cannot be created",
			request: CreateUserRequest{Username: "root", Password: "pw", Role: RoleAdmin},
			wantErr: true,
			errMsg:  "oneof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestListQuery_Validation(t *testing.T) {
	tests := []struct {
		name    string
		query   ListQuery
		wantErr bool
	}{
		{"first page of ten", ListQuery{Page: 1, Limit: 10}, false},
		{"page size 100", ListQuery{Page: 3, Limit: 100}, false},
		{"page zero", ListQuery{Page: 0, Limit: 10}, true},
		{"unsupported size", ListQuery{Page: 1, Limit: 25}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDownloadRequest_Validation(t *testing.T) {
	assert.NoError(t, (&DownloadRequest{Name: "ResumeA", Ext: ExtDocx}).Validate())
	assert.NoError(t, (&DownloadRequest{Name: "ResumeA", Ext: ExtTxt}).Validate())
	assert.Error(t, (&DownloadRequest{Name: "ResumeA", Ext: ".pdf"}).Validate())
	assert.Error(t, (&DownloadRequest{Ext: ExtDocx}).Validate())
}

func TestArchiveRequest_Validation(t *testing.T) {
	assert.NoError(t, (&ArchiveRequest{Date: "2024-01-05"}).Validate())
	assert.Error(t, (&ArchiveRequest{Date: "2024/01/05"}).Validate())
	assert.Error(t, (&ArchiveRequest{}).Validate())
}

func TestDraftRequest_RejectsBlankDescription(t *testing.T) {
	assert.Error(t, (&DraftRequest{JobDescription: ""}).Validate())
	assert.Error(t, (&DraftRequest{JobDescription: "   \n\t"}).Validate())
	assert.NoError(t, (&DraftRequest{JobDescription: "Senior Go engineer"}).Validate())
}

func TestFilterCriteria_Validate(t *testing.T) {
	assert.NoError(t, (&FilterCriteria{}).Validate())
	assert.NoError(t, (&FilterCriteria{Text: "x", StartDate: "2024-01-01", EndDate: "2024-01-31"}).Validate())
	assert.Error(t, (&FilterCriteria{StartDate: "01/01/2024"}).Validate())
}

func TestValidationMessage(t *testing.T) {
	err := (&ListQuery{Page: 1, Limit: 7}).Validate()
	require.Error(t, err)
	assert.Equal(t, "Limit: must satisfy oneof=10 20 50 100", ValidationMessage(err))
}
