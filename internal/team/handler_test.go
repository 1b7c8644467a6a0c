package team

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/middleware"
	"github.com/teamfaces/teamfaces/internal/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo, _, _ := newTestRepo(t)
	h := NewHandler(repo, nil)
	adminID := uuid.New()
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextUserID, adminID) })
	r.GET("/team", h.GetTeam)
	r.GET("/team/members", h.ListMembers)
	r.PATCH("/team/members/:id", h.UpdateMember)
	r.GET("/invites/:code", h.PreviewInvite)
	r.POST("/admin/invites", h.CreateInvite)
	r.GET("/admin/invites", h.ListInvites)
	return r, repo
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return w, env
}

func TestHandlerTeamNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w, env := do(t, r, http.MethodGet, "/team", nil)
	if w.Code != http.StatusNotFound || env.Success {
		t.Fatalf("GET /team = %d %+v", w.Code, env)
	}
}

func TestHandlerListMembersEmpty(t *testing.T) {
	r, _ := newTestRouter(t)
	w, env := do(t, r, http.MethodGet, "/team/members", nil)
	if w.Code != http.StatusOK || string(env.Data) != "[]" {
		t.Fatalf("GET /team/members = %d %s", w.Code, env.Data)
	}
}

func TestHandlerUpdateMember(t *testing.T) {
	r, repo := newTestRouter(t)
	id := uuid.New()
	repo.UpsertMember(context.Background(), id, MemberFields{Name: strPtr("Ada")})

	w, _ := do(t, r, http.MethodPatch, "/team/members/"+id.String(), map[string]string{"status": "sleeping"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: %d", w.Code)
	}
	w, _ = do(t, r, http.MethodPatch, "/team/members/"+uuid.NewString(), map[string]string{"status": "busy"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown member: %d", w.Code)
	}

	w, env := do(t, r, http.MethodPatch, "/team/members/"+id.String(),
		map[string]string{"status": "busy", "role": "viewer", "schedule": " 10-6 "})
	if w.Code != http.StatusOK {
		t.Fatalf("update: %d %s", w.Code, env.Error)
	}
	var m models.Member
	json.Unmarshal(env.Data, &m)
	if m.Status != models.StatusBusy || m.Role != models.RoleViewer || m.Schedule != "10-6" || m.Name != "Ada" {
		t.Errorf("member = %+v", m)
	}
}

func TestHandlerInviteFlow(t *testing.T) {
	r, repo := newTestRouter(t)
	repo.CreateTeam(context.Background(), &models.Team{Name: "Ops"})

	w, env := do(t, r, http.MethodPost, "/admin/invites", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create invite: %d %s", w.Code, env.Error)
	}
	var inv models.InviteCode
	json.Unmarshal(env.Data, &inv)

	w, env = do(t, r, http.MethodGet, "/invites/"+inv.Code, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview: %d %s", w.Code, env.Error)
	}
	var preview InvitePreview
	json.Unmarshal(env.Data, &preview)
	if preview.TeamName != "Ops" || preview.Code != inv.Code {
		t.Errorf("preview = %+v", preview)
	}

	w, env = do(t, r, http.MethodGet, "/admin/invites", nil)
	var list []models.InviteCode
	json.Unmarshal(env.Data, &list)
	if w.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list invites: %d %s", w.Code, env.Data)
	}

	repo.ConsumeInviteCode(context.Background(), inv.Code, uuid.New())
	w, _ = do(t, r, http.MethodGet, "/invites/"+inv.Code, nil)
	if w.Code != http.StatusGone {
		t.Fatalf("preview of used code: %d", w.Code)
	}
}
