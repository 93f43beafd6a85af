package store

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-vault/internal/types"
)

const opSignIn = "signin"

// SignInPath is the credential exchange endpoint.
const SignInPath = "/auth/signin"

// DraftPath accepts a job description for résumé drafting.
const DraftPath = "/generate/resume-draft"

// SignIn exchanges credentials for a bearer token and the principal it was
// issued for. It needs no session; a 401 here is a rejected credential and
// comes back as a *RequestError.
func (c *Client) SignIn(ctx context.Context, username, password string) (string, types.Principal, error) {
	req := types.SignInRequest{Username: username, Password: password}
	if err := req.Validate(); err != nil {
		return "", nil, fmt.Errorf("%s: %s", opSignIn, types.ValidationMessage(err))
	}

	var resp types.SignInResponse
	if err := c.Call(ctx, opSignIn, http.MethodPost, SignInPath, nil, req, &resp); err != nil {
		return "", nil, err
	}
	if resp.Token == "" {
		return "", nil, &DisguisedError{Op: opSignIn, Message: "sign-in reply carried no token"}
	}
	p, err := types.NewPrincipal(resp.User.Role, resp.User.ID, resp.User.Username)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", opSignIn, err)
	}
	return resp.Token, p, nil
}

// SubmitDraft posts a job description for drafting and returns the store's
// reply message. Empty or whitespace-only text is rejected before sending.
func (c *Client) SubmitDraft(ctx context.Context, jobDescription string) (string, error) {
	req := types.DraftRequest{JobDescription: jobDescription}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("draft: %s", types.ValidationMessage(err))
	}
	var resp struct {
		Message string `json:"message"`
	}
	if err := c.Call(ctx, "draft", http.MethodPost, DraftPath, nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
