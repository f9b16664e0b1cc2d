// Package client is a Go client for the todo service's HTTP API.
//
// AUTHENTICATION:
// POST /auth/token speaks the OAuth2 "resource owner password credentials"
// grant, so the client doesn't hand-roll login: golang.org/x/oauth2 posts the
// form and parses the token. WithToken then wraps the HTTP client in an
// oauth2.Transport that adds "Authorization: Bearer ..." to every request.
//
//	c := client.New("http://localhost:8080", nil)
//	tok, err := c.Login(ctx, "alice", "pw123456")
//	alice := c.WithToken(tok)
//	todos, err := alice.ListTodos(ctx)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/todo-service/internal/handler"
	"github.com/sakif/todo-service/internal/model"
)

// clientID is sent with the password grant. The server ignores it.
const clientID = "todo-go-client"

// Client calls the API. The zero value is not usable; use New.
type Client struct {
	baseURL string
	http    *http.Client
	oauth   *oauth2.Config
}

// APIError is any non-2xx response.
type APIError struct {
	StatusCode int
	Kind       string // "not_found", "forbidden", ...
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("todo api: %d %s: %s", e.StatusCode, e.Kind, e.Detail)
}

// New creates an unauthenticated client. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		oauth: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/auth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// WithToken returns a copy of c that authenticates every request with tok.
//
// There is no refresh token. Once tok expires the server answers 401 and
// the caller has to Login again.
func (c *Client) WithToken(tok *oauth2.Token) *Client {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
	return &Client{
		baseURL: c.baseURL,
		http:    oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)),
		oauth:   c.oauth,
	}
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req handler.RegisterRequest) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodPost, "/auth/", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := c.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, decodeAPIError(re.Response.StatusCode, re.Body)
		}
		return nil, fmt.Errorf("todo api: login: %w", err)
	}
	return tok, nil
}

func (c *Client) ListTodos(ctx context.Context) ([]model.Todo, error) {
	var todos []model.Todo
	if err := c.do(ctx, http.MethodGet, "/todo/", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

func (c *Client) GetTodo(ctx context.Context, id int64) (*model.Todo, error) {
	var todo model.Todo
	if err := c.do(ctx, http.MethodGet, todoPath(id), nil, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// CreateTodo returns the stored todo, including its new id.
func (c *Client) CreateTodo(ctx context.Context, req handler.TodoRequest) (*model.Todo, error) {
	var todo model.Todo
	if err := c.do(ctx, http.MethodPost, "/todo", req, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

func (c *Client) UpdateTodo(ctx context.Context, id int64, req handler.TodoRequest) error {
	return c.do(ctx, http.MethodPut, todoPath(id), req, nil)
}

func (c *Client) DeleteTodo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, todoPath(id), nil, nil)
}

// AdminListTodos needs an admin token.
func (c *Client) AdminListTodos(ctx context.Context) ([]model.Todo, error) {
	var todos []model.Todo
	if err := c.do(ctx, http.MethodGet, "/admin/todo", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// AdminDeleteTodo needs an admin token.
func (c *Client) AdminDeleteTodo(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/admin/todo/"+strconv.FormatInt(id, 10), nil, nil)
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/user/", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.do(ctx, http.MethodPut, "/user/password", handler.ChangePasswordRequest{
		Password:    oldPassword,
		NewPassword: newPassword,
	}, nil)
}

func (c *Client) ChangePhoneNumber(ctx context.Context, phoneNumber string) error {
	return c.do(ctx, http.MethodPut, "/user/phonenumber/"+url.PathEscape(phoneNumber), nil, nil)
}

func todoPath(id int64) string {
	return "/todo/" + strconv.FormatInt(id, 10)
}

// do sends one JSON request. in and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("todo api: encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("todo api: building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("todo api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("todo api: decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var body handler.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Kind = body.Error
		apiErr.Detail = body.Detail
		return apiErr
	}

	apiErr.Kind = strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	apiErr.Detail = strings.TrimSpace(string(raw))
	return apiErr
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
