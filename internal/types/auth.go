package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SignInRequest represents the sign-in request.
type SignInRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SignInResponse carries the bearer token and the account it was issued for.
type SignInResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateUserRequest represents an administrator creating an account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=1"`
	Role     Role   `json:"role" validate:"required,oneof=bidder developer"`
}

// RoleChangeRequest switches a non-admin account between bidder and developer.
type RoleChangeRequest struct {
	Role Role `json:"role" validate:"required,oneof=bidder developer"`
}

// PasswordUpdateRequest represents an administrator setting a user's password.
type PasswordUpdateRequest struct {
	Password string `json:"password" validate:"required"`
}

// AssignRequest assigns a bidder to a developer.
type AssignRequest struct {
	BidderID    string `json:"bidderId" validate:"required"`
	DeveloperID string `json:"developerId" validate:"required"`
}

// ListQuery is the page request sent to the list endpoint.
type ListQuery struct {
	Page  int `validate:"min=1"`
	Limit int `validate:"oneof=10 20 50 100"`
}

// DeleteRequest removes an artifact by name.
type DeleteRequest struct {
	Name string `json:"name" validate:"required"`
}

// DownloadRequest addresses one physical file of an artifact.
type DownloadRequest struct {
	Name string    `validate:"required"`
	Ext  Extension `validate:"oneof=.docx .txt"`
}

// ArchiveRequest addresses all artifacts of a single day.
type ArchiveRequest struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

// DraftRequest submits a job description for résumé drafting.
type DraftRequest struct {
	JobDescription string `json:"jobDescription" validate:"required"`
}

// Validate validates the SignInRequest using the validator.
func (r *SignInRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the CreateUserRequest using the validator.
func (r *CreateUserRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the RoleChangeRequest using the validator.
func (r *RoleChangeRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the PasswordUpdateRequest using the validator.
func (r *PasswordUpdateRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the AssignRequest using the validator.
func (r *AssignRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the ListQuery using the validator.
func (r *ListQuery) Validate() error {
	return validate.Struct(r)
}

// Validate validates the DeleteRequest using the validator.
func (r *DeleteRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the DownloadRequest using the validator.
func (r *DownloadRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the ArchiveRequest using the validator.
func (r *ArchiveRequest) Validate() error {
	return validate.Struct(r)
}

// Validate rejects a job description that is empty once surrounding whitespace is removed.
func (r *DraftRequest) Validate() error {
	trimmed := DraftRequest{JobDescription: strings.TrimSpace(r.JobDescription)}
	return validate.Struct(&trimmed)
}

// ValidationMessage renders the first validation failure as "Field: tag".
func ValidationMessage(err error) string {
	if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
		ve := ves[0]
		if ve.Param() != "" {
			return ve.Field() + ": must satisfy " + ve.Tag() + "=" + ve.Param()
		}
		return ve.Field() + ": " + ve.Tag()
	}
	return err.Error()
}
