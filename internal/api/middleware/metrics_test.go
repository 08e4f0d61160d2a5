package middleware

import "testing"

func TestNormalizePath(t *testing.T) {
	const eventID = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"

	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/metrics", "/metrics"},
		{"/api/v1/events", "/api/v1/events"},
		{"/api/v1/users/me", "/api/v1/users/me"},
		{"/api/v1/auth/social/google", "/api/v1/auth/social/{provider}"},
		{"/api/v1/auth/link/github", "/api/v1/auth/link/{provider}"},
		{"/api/v1/users/me/identities/google", "/api/v1/users/me/identities/{provider}"},
		{"/api/v1/events/" + eventID, "/api/v1/events/{id}"},
		{"/api/v1/events/" + eventID + "/enroll", "/api/v1/events/{id}/enroll"},
		{"/api/v1/events/" + eventID + "/start", "/api/v1/events/{id}/start"},
		{"/api/v1/events/" + eventID + "/finish", "/api/v1/events/{id}/finish"},
		{"/api/v1/events/" + eventID + "/reset", "/api/v1/events/{id}/reset"},
		{"/api/v1/events/" + eventID + "/admins", "/api/v1/events/{id}/admins"},
		{"/api/v1/events/" + eventID + "/admins/" + eventID, "/api/v1/events/{id}/admins"},
		{"/api/v1/events/" + eventID + "/participants", "/api/v1/events/{id}/participants"},
		{"/api/v1/events/" + eventID + "/participants/me", "/api/v1/events/{id}/participants"},
		{"/api/v1/users/" + eventID, "/api/v1/users/{id}"},
		{"/api/v1/users/" + eventID + "/provider", "/api/v1/users/{id}/provider"},
		{"/api/v1/gps/latest", "/api/v1/gps/latest"},
		{"/api/v1/gps/latest/" + eventID, "/api/v1/gps/latest/{user_id}"},
		{"/unknown/path", "/unknown/path"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, хотели %q", tt.path, got, tt.want)
			}
		})
	}
}
