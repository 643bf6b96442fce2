// Package identity talks to the desa REST API: it resolves a bearer token into the user record
// and exchanges login credentials for a token.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/ports"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 1 << 20

var (
	_ ports.IdentityLookup = (*Client)(nil)
	_ ports.Authenticator  = (*Client)(nil)
)

var (
	// ErrMalformedToken is returned for tokens whose claims cannot be decoded.
	ErrMalformedToken = errors.New("malformed token")
	// ErrMalformedResponse is returned when a 2xx response lacks the expected fields.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrLookupRejected matches every non-2xx identity lookup response.
	ErrLookupRejected = errors.New("identity lookup rejected")
)

// RejectedError carries the status of a non-2xx identity lookup.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("identity lookup rejected with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("identity lookup rejected with status %d", e.StatusCode)
}

// Is makes errors.Is(err, ErrLookupRejected) true.
func (e *RejectedError) Is(target error) bool {
	return target == ErrLookupRejected
}

// LoginError is a login failure whose Message can be shown to the operator.
type LoginError struct {
	StatusCode int
	Message    string
}

func (e *LoginError) Error() string {
	return e.Message
}

// PublicMessage returns the upstream message for display on the login form.
func (e *LoginError) PublicMessage() string {
	return e.Message
}

// Options configures Client.
type Options struct {
	BaseURL string
	// LookupPath is joined to BaseURL; "{id}" is replaced with the user id from the token.
	LookupPath string
	LoginPath  string
	Roles      ports.RoleMapper
	// HTTPClient is optional. The default client keeps cookies with a public-suffix aware jar.
	HTTPClient *http.Client
}

// Client implements ports.IdentityLookup and ports.Authenticator against the REST API.
type Client struct {
	base       *url.URL
	lookupPath string
	loginPath  string
	roles      ports.RoleMapper
	http       *http.Client
}

// New constructs a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https, got %q", opts.BaseURL)
	}
	if opts.LookupPath == "" {
		opts.LookupPath = "/api/users/{id}"
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/api/login"
	}

	hc := opts.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc = &http.Client{Timeout: 30 * time.Second, Jar: jar}
	}

	return &Client{
		base:       base,
		lookupPath: opts.LookupPath,
		loginPath:  opts.LoginPath,
		roles:      opts.Roles,
		http:       hc,
	}, nil
}

// BearerTransport returns a RoundTripper that sends token as a bearer Authorization header.
func BearerTransport(token string, base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   base,
	}
}

// UserIDFromToken decodes the user id claim ("id", "user_id", then "sub") without verifying the
// signature; the lookup call is what verifies the token.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	for _, key := range []string{"id", "user_id", "sub"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	return "", fmt.Errorf("%w: no user id claim", ErrMalformedToken)
}

// Lookup resolves token into the user record returned by the lookup endpoint.
func (c *Client) Lookup(ctx context.Context, token string) (domainauth.Identity, error) {
	userID, err := UserIDFromToken(token)
	if err != nil {
		return domainauth.Identity{}, err
	}

	endpoint := c.base.JoinPath(strings.ReplaceAll(c.lookupPath, "{id}", url.PathEscape(userID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("build lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.bearerClient(token).Do(req)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("identity lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("read lookup response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domainauth.Identity{}, &RejectedError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	var envelope struct {
		Data *userRecord `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if envelope.Data == nil {
		return domainauth.Identity{}, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	identity := envelope.Data.identity(c.roles)
	if identity.UserID == "" {
		identity.UserID = userID
	}
	if identity.Username == "" {
		return domainauth.Identity{}, fmt.Errorf("%w: missing username", ErrMalformedResponse)
	}
	return identity, nil
}

// Login posts creds to the login endpoint and returns the issued token.
func (c *Client) Login(ctx context.Context, creds ports.Credentials) (string, error) {
	payload, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(c.loginPath).String(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("login failed: %s", http.StatusText(resp.StatusCode))
		}
		return "", &LoginError{StatusCode: resp.StatusCode, Message: msg}
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: missing token", ErrMalformedResponse)
	}
	return out.Token, nil
}

func (c *Client) bearerClient(token string) *http.Client {
	return &http.Client{
		Transport:     BearerTransport(token, c.http.Transport),
		CheckRedirect: c.http.CheckRedirect,
		Jar:           c.http.Jar,
		Timeout:       c.http.Timeout,
	}
}

func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// userRecord is the user JSON of the REST API. Ids arrive as strings or numbers.
type userRecord struct {
	UserID   flexString `json:"user_id"`
	ID       flexString `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
}

func (u userRecord) identity(roles ports.RoleMapper) domainauth.Identity {
	id := string(u.UserID)
	if id == "" {
		id = string(u.ID)
	}
	role := domainauth.ParseRole(u.Role)
	if roles != nil {
		role = roles.Map([]string{u.Role})
	}
	return domainauth.Identity{
		UserID:      id,
		Username:    u.Username,
		DisplayName: u.Name,
		Email:       u.Email,
		Role:        role,
	}
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
