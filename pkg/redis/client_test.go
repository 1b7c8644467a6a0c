package redis

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"team", "default", "members"}, "teamfaces:team:default:members"},
		{[]string{"pwreset", "abc"}, "teamfaces:pwreset:abc"},
		{nil, "teamfaces:"},
	}
	for _, tt := range tests {
		if got := Key(tt.parts...); got != tt.want {
			t.Errorf("Key(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}
