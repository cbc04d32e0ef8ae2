package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "wildcard", allowed: []string{"https://a.example", "*"}, origin: "https://anything.example", want: true},
		{name: "exact match", allowed: []string{"https://a.example"}, origin: "https://a.example", want: true},
		{name: "trailing slash in config", allowed: []string{"https://a.example/"}, origin: "https://a.example", want: true},
		{name: "case insensitive", allowed: []string{"HTTPS://A.Example"}, origin: "https://a.example", want: true},
		{name: "origin path ignored", allowed: []string{"https://a.example"}, origin: "https://a.example/room/1", want: true},
		{name: "port must match", allowed: []string{"http://localhost:3000"}, origin: "http://localhost:3001", want: false},
		{name: "scheme must match", allowed: []string{"https://a.example"}, origin: "http://a.example", want: false},
		{name: "not listed", allowed: []string{"https://a.example"}, origin: "https://b.example", want: false},
		{name: "empty list rejects", allowed: nil, origin: "https://a.example", want: false},
		{name: "no origin header", allowed: []string{"https://a.example"}, want: true},
		{name: "unparseable origin", allowed: []string{"https://a.example"}, origin: "://bad\x7f", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}
