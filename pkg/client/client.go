package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
)

// Session is a signed-in identity and its bearer token.
type Session struct {
	Token string          `json:"token"`
	User  models.Identity `json:"user"`
}

// Account is the name and credentials of a new identity.
type Account struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// JoinResult is returned by setup, join and register.
type JoinResult struct {
	Team    *models.Team   `json:"team"`
	Member  *models.Member `json:"member"`
	Session *Session       `json:"session"`
}

// ProfileUpdate is the body of PATCH /auth/me. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// SetupRequest is the setup wizard submission. LogoPath is an optional local image file.
type SetupRequest struct {
	TeamName    string
	Description string
	LogoPath    string
	Admin       Account
}

// CardUpdate is the signed-in member's own card. PhotoPath is an optional local image file.
type CardUpdate struct {
	Name          string
	Status        models.Status
	StatusMessage string
	Schedule      string
	PhotoPath     string
}

// CardResult is the stored card and the refreshed identity.
type CardResult struct {
	Member *models.Member   `json:"member"`
	User   *models.Identity `json:"user"`
}

// MemberUpdate is an admin edit of another member's card.
type MemberUpdate struct {
	Role          *models.Role   `json:"role,omitempty"`
	Status        *models.Status `json:"status,omitempty"`
	StatusMessage *string        `json:"status_message,omitempty"`
	Schedule      *string        `json:"schedule,omitempty"`
}

// TeamUpdate is an admin edit of the team header and settings. LogoPath is an optional local image file.
type TeamUpdate struct {
	Name        *string
	Description *string
	LogoPath    string

	AllowSelfRegister *bool
	RequireApproval   *bool
	Theme             *string
}

// InvitePreview names the team an invite code joins.
type InvitePreview struct {
	Code     string `json:"code"`
	TeamName string `json:"team_name"`
	LogoURL  string `json:"logo_url,omitempty"`
}

// Dashboard is the admin summary.
type Dashboard struct {
	TeamName       string                `json:"team_name"`
	TotalMembers   int                   `json:"total_members"`
	ActiveToday    int                   `json:"active_today"`
	PendingInvites int                   `json:"pending_invites"`
	BoardsOnline   int                   `json:"boards_online"`
	StatusCounts   map[models.Status]int `json:"status_counts"`
	RecentActivity []models.Activity     `json:"recent_activity"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client is the team board API client.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a new API client.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// --- Auth ---

// Login signs in with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	if err := c.post(ctx, "/auth/login", map[string]string{"email": email, "password": password}, &s); err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	return &s, nil
}

// Register self-registers into the team.
func (c *Client) Register(ctx context.Context, acct Account) (*JoinResult, error) {
	var res JoinResult
	if err := c.post(ctx, "/auth/register", acct, &res); err != nil {
		return nil, fmt.Errorf("client.Register: %w", err)
	}
	return &res, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("client.Logout: %w", err)
	}
	return nil
}

// Me returns the signed-in identity.
func (c *Client) Me(ctx context.Context) (*models.Identity, error) {
	var ident models.Identity
	if err := c.get(ctx, "/auth/me", &ident); err != nil {
		return nil, fmt.Errorf("client.Me: %w", err)
	}
	return &ident, nil
}

// UpdateMe updates the identity's own profile.
func (c *Client) UpdateMe(ctx context.Context, u ProfileUpdate) (*models.Identity, error) {
	var ident models.Identity
	if err := c.doRequest(ctx, http.MethodPatch, "/auth/me", u, &ident); err != nil {
		return nil, fmt.Errorf("client.UpdateMe: %w", err)
	}
	return &ident, nil
}

// RequestPasswordReset asks for a reset code by email.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	if err := c.post(ctx, "/auth/password-reset", map[string]string{"email": email}, nil); err != nil {
		return fmt.Errorf("client.RequestPasswordReset: %w", err)
	}
	return nil
}

// ConfirmPasswordReset sets a new password with a reset code.
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	if err := c.post(ctx, "/auth/password-reset/confirm", map[string]string{"token": token, "password": password}, nil); err != nil {
		return fmt.Errorf("client.ConfirmPasswordReset: %w", err)
	}
	return nil
}

// --- Onboarding ---

// SetupRequired reports whether the team has not been set up yet.
func (c *Client) SetupRequired(ctx context.Context) (bool, error) {
	var out struct {
		SetupRequired bool `json:"setup_required"`
	}
	if err := c.get(ctx, "/setup/status", &out); err != nil {
		return false, fmt.Errorf("client.SetupRequired: %w", err)
	}
	return out.SetupRequired, nil
}

// Setup creates the team and its admin.
func (c *Client) Setup(ctx context.Context, req SetupRequest) (*JoinResult, error) {
	fields := map[string]string{
		"team_name":   req.TeamName,
		"description": req.Description,
		"name":        req.Admin.Name,
		"email":       req.Admin.Email,
		"password":    req.Admin.Password,
	}
	var res JoinResult
	if err := c.doMultipart(ctx, http.MethodPost, "/setup", fields, "logo", req.LogoPath, &res); err != nil {
		return nil, fmt.Errorf("client.Setup: %w", err)
	}
	return &res, nil
}

// Join redeems an invite code.
func (c *Client) Join(ctx context.Context, code string, acct Account) (*JoinResult, error) {
	body := struct {
		Code string `json:"code"`
		Account
	}{Code: code, Account: acct}
	var res JoinResult
	if err := c.post(ctx, "/join", body, &res); err != nil {
		return nil, fmt.Errorf("client.Join: %w", err)
	}
	return &res, nil
}

// PreviewInvite checks a code without redeeming it.
func (c *Client) PreviewInvite(ctx context.Context, code string) (*InvitePreview, error) {
	var p InvitePreview
	if err := c.get(ctx, "/invites/"+url.PathEscape(code), &p); err != nil {
		return nil, fmt.Errorf("client.PreviewInvite: %w", err)
	}
	return &p, nil
}

// --- Team ---

// GetTeam returns the team record.
func (c *Client) GetTeam(ctx context.Context) (*models.Team, error) {
	var t models.Team
	if err := c.get(ctx, "/team", &t); err != nil {
		return nil, fmt.Errorf("client.GetTeam: %w", err)
	}
	return &t, nil
}

// UpdateTeam edits the team header.
func (c *Client) UpdateTeam(ctx context.Context, u TeamUpdate) (*models.Team, error) {
	fields := map[string]string{}
	if u.Name != nil {
		fields["name"] = *u.Name
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.AllowSelfRegister != nil {
		fields["allow_self_register"] = strconv.FormatBool(*u.AllowSelfRegister)
	}
	if u.RequireApproval != nil {
		fields["require_approval"] = strconv.FormatBool(*u.RequireApproval)
	}
	if u.Theme != nil {
		fields["theme"] = *u.Theme
	}
	var t models.Team
	if err := c.doMultipart(ctx, http.MethodPatch, "/team", fields, "logo", u.LogoPath, &t); err != nil {
		return nil, fmt.Errorf("client.UpdateTeam: %w", err)
	}
	return &t, nil
}

// ListMembers returns every member in join order.
func (c *Client) ListMembers(ctx context.Context) ([]models.Member, error) {
	var members []models.Member
	if err := c.get(ctx, "/team/members", &members); err != nil {
		return nil, fmt.Errorf("client.ListMembers: %w", err)
	}
	return members, nil
}

// GetMember returns one member's card.
func (c *Client) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var m models.Member
	if err := c.get(ctx, "/team/members/"+id.String(), &m); err != nil {
		return nil, fmt.Errorf("client.GetMember: %w", err)
	}
	return &m, nil
}

// UpdateMyCard submits the signed-in member's status card.
func (c *Client) UpdateMyCard(ctx context.Context, u CardUpdate) (*CardResult, error) {
	fields := map[string]string{
		"name":           u.Name,
		"status":         string(u.Status),
		"status_message": u.StatusMessage,
		"schedule":       u.Schedule,
	}
	var res CardResult
	if err := c.doMultipart(ctx, http.MethodPut, "/team/members/me", fields, "photo", u.PhotoPath, &res); err != nil {
		return nil, fmt.Errorf("client.UpdateMyCard: %w", err)
	}
	return &res, nil
}

// UpdateMember edits another member's card (admin).
func (c *Client) UpdateMember(ctx context.Context, id uuid.UUID, u MemberUpdate) (*models.Member, error) {
	var m models.Member
	if err := c.doRequest(ctx, http.MethodPatch, "/team/members/"+id.String(), u, &m); err != nil {
		return nil, fmt.Errorf("client.UpdateMember: %w", err)
	}
	return &m, nil
}

// --- Admin ---

// CreateInvite generates a new invite code.
func (c *Client) CreateInvite(ctx context.Context) (*models.InviteCode, error) {
	var code models.InviteCode
	if err := c.post(ctx, "/admin/invites", nil, &code); err != nil {
		return nil, fmt.Errorf("client.CreateInvite: %w", err)
	}
	return &code, nil
}

// ListInvites returns unused, unexpired invite codes.
func (c *Client) ListInvites(ctx context.Context) ([]models.InviteCode, error) {
	var codes []models.InviteCode
	if err := c.get(ctx, "/admin/invites", &codes); err != nil {
		return nil, fmt.Errorf("client.ListInvites: %w", err)
	}
	return codes, nil
}

// Dashboard returns the admin summary.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.get(ctx, "/admin/dashboard", &d); err != nil {
		return nil, fmt.Errorf("client.Dashboard: %w", err)
	}
	return &d, nil
}

// EmailLogs returns recent mail delivery attempts.
func (c *Client) EmailLogs(ctx context.Context, limit int) ([]models.EmailLog, error) {
	var logs []models.EmailLog
	if err := c.get(ctx, "/admin/emails?limit="+strconv.Itoa(limit), &logs); err != nil {
		return nil, fmt.Errorf("client.EmailLogs: %w", err)
	}
	return logs, nil
}

// --- transport ---

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// doMultipart sends fields plus an optional file read from filePath.
func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, fileField, filePath string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if filePath != "" {
		if err := attachFile(w, fileField, filePath); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req, out)
}

func attachFile(w *multipart.Writer, field, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filepath.Base(filePath)))
	h.Set("Content-Type", imageType(filePath))
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}
	return nil
}

func imageType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	return "application/octet-stream"
}

func (c *Client) send(req *http.Request, out any) error {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", err)}
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)
	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: env.Error}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
