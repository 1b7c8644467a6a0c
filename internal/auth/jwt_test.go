package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teamfaces/teamfaces/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 2)
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", Role: models.RoleViewer}
	token, err := svc.Generate(user)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != models.RoleViewer || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWTRejects(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", Role: models.RoleMember}
	good := NewJWTService("secret", 1)
	token, _ := good.Generate(user)

	if _, err := NewJWTService("other", 1).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: got %v", err)
	}

	expired := NewJWTService("secret", 1)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := expired.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: got %v", err)
	}

	if _, err := good.Validate("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: got %v", err)
	}
}
