package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	perrors "github.com/jrsteele09/academy-portal/internal/errors"
)

// Backend auth endpoints, relative to the base URL.
const (
	PathToken        = "token/"
	PathTokenRefresh = "token/refresh/"
	PathProfile      = "profile/"
	PathStudentLogin = "student-login/"
)

// UserInfo is the identity block returned by the student login endpoint.
type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenPair is a login response. Staff logins may carry the role at the top level, student
// logins nest it under user.
type TokenPair struct {
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	Role    string    `json:"role,omitempty"`
	User    *UserInfo `json:"user,omitempty"`
}

// UserRole returns the role from either position, top level first.
func (p TokenPair) UserRole() string {
	if p.Role != "" {
		return p.Role
	}
	if p.User != nil {
		return p.User.Role
	}
	return ""
}

func (p TokenPair) Username() string {
	if p.User != nil {
		return p.User.Username
	}
	return ""
}

type Profile struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type obtainTokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type studentLoginRequest struct {
	EnrollmentID string `json:"enrollment_id"`
	DateOfBirth  string `json:"date_of_birth"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// ObtainToken exchanges staff credentials for a token pair. The backend checks the claimed role
// against the account.
func (c *Client) ObtainToken(ctx context.Context, username, password, role string) (*TokenPair, error) {
	resp, err := c.Post(ctx, PathToken, obtainTokenRequest{Username: username, Password: password, Role: role}, WithoutAuth())
	if err != nil {
		return nil, loginError("ObtainToken", err)
	}
	return decodePair("ObtainToken", resp)
}

// StudentLogin exchanges an enrollment id and date of birth for a token pair.
func (c *Client) StudentLogin(ctx context.Context, enrollmentID, dateOfBirth string) (*TokenPair, error) {
	resp, err := c.Post(ctx, PathStudentLogin, studentLoginRequest{EnrollmentID: enrollmentID, DateOfBirth: dateOfBirth}, WithoutAuth())
	if err != nil {
		return nil, loginError("StudentLogin", err)
	}
	return decodePair("StudentLogin", resp)
}

// RefreshToken exchanges a refresh token for a new access token.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (string, error) {
	resp, err := c.Post(ctx, PathTokenRefresh, refreshRequest{Refresh: refresh}, WithoutAuth())
	if err != nil {
		return "", fmt.Errorf("[apiclient RefreshToken] %w", err)
	}
	var out refreshResponse
	if err := resp.JSON(&out); err != nil {
		return "", fmt.Errorf("[apiclient RefreshToken] %w", err)
	}
	if out.Access == "" {
		return "", fmt.Errorf("[apiclient RefreshToken] %w: no access token", perrors.ErrMalformedResponse)
	}
	return out.Access, nil
}

// Profile fetches the identity behind the current bearer token.
func (c *Client) Profile(ctx context.Context, opts ...RequestOption) (*Profile, error) {
	var p Profile
	if err := c.GetJSON(ctx, PathProfile, &p, opts...); err != nil {
		return nil, fmt.Errorf("[apiclient Profile] %w", err)
	}
	return &p, nil
}

func decodePair(op string, resp *Response) (*TokenPair, error) {
	var pair TokenPair
	if err := resp.JSON(&pair); err != nil {
		return nil, fmt.Errorf("[apiclient %s] %w", op, err)
	}
	if pair.Access == "" {
		return nil, fmt.Errorf("[apiclient %s] %w: no access token", op, perrors.ErrMalformedResponse)
	}
	return &pair, nil
}

// loginError turns a rejected login into ErrInvalidCredentials so it is not mistaken for an
// expired session.
func loginError(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnauthorized) {
		if d := apiErr.Detail(); d != "" {
			return fmt.Errorf("[apiclient %s] %w: %s", op, perrors.ErrInvalidCredentials, d)
		}
		return fmt.Errorf("[apiclient %s] %w", op, perrors.ErrInvalidCredentials)
	}
	return fmt.Errorf("[apiclient %s] %w", op, err)
}
