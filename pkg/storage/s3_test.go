package storage

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestImageContentType(t *testing.T) {
	tests := []struct {
		contentType string
		filename    string
		want        string
		wantErr     bool
	}{
		{"image/png", "a.png", "image/png", false},
		{"IMAGE/JPEG", "a.bin", "image/jpeg", false},
		{"", "photo.JPEG", "image/jpeg", false},
		{"application/octet-stream", "logo.webp", "image/webp", false},
		{"video/mp4", "clip.mp4", "", true},
		{"", "notes.txt", "", true},
	}
	for _, tt := range tests {
		got, err := ImageContentType(tt.contentType, tt.filename)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedType) {
				t.Errorf("ImageContentType(%q, %q) error = %v, want ErrUnsupportedType", tt.contentType, tt.filename, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ImageContentType(%q, %q) = %q, %v; want %q", tt.contentType, tt.filename, got, err, tt.want)
		}
	}
}

func TestObjectKeys(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	logo := LogoKey("../../Team Logo.PNG", now)
	if !regexp.MustCompile(`^teams/logos/1700000000123_[0-9a-z]{9}\.png$`).MatchString(logo) {
		t.Errorf("LogoKey = %q", logo)
	}

	avatar := AvatarKey("3f1c", "me.jpg", now)
	if !regexp.MustCompile(`^users/3f1c/avatar/1700000000123_[0-9a-z]{9}\.jpg$`).MatchString(avatar) {
		t.Errorf("AvatarKey = %q", avatar)
	}

	if noExt := LogoKey("logo", now); !regexp.MustCompile(`\.bin$`).MatchString(noExt) {
		t.Errorf("LogoKey without extension = %q", noExt)
	}
}

func TestPublicURL(t *testing.T) {
	s := &S3{cfg: S3Config{Region: "eu-west-1", MediaBucket: "faces"}}
	if got := s.PublicURL("users/a/avatar/x.png"); got != "https://faces.s3.eu-west-1.amazonaws.com/users/a/avatar/x.png" {
		t.Errorf("PublicURL = %q", got)
	}
	s.cfg.PublicBaseURL = "https://cdn.example.com/"
	if got := s.PublicURL("k.png"); got != "https://cdn.example.com/k.png" {
		t.Errorf("PublicURL with base = %q", got)
	}
}
