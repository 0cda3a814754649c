package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthorized(t *testing.T) {
	tests := []struct {
		name    string
		allowed []int64
		userID  int64
		want    bool
	}{
		{name: "empty allowlist", allowed: nil, userID: 42, want: true},
		{name: "listed", allowed: []int64{1, 42}, userID: 42, want: true},
		{name: "not listed", allowed: []int64{1, 2}, userID: 42, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewAuthenticator(tt.allowed).IsAuthorized(tt.userID))
		})
	}
}
