package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStoreName(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		valid bool
	}{
		{"simple", "shop", true},
		{"with numbers", "shop2", true},
		{"with dash", "my-shop", true},
		{"only digits", "123", true},
		{"empty", "", false},
		{"uppercase", "Shop", false},
		{"space and punctuation", "My Store!", false},
		{"underscore", "my_shop", false},
		{"unicode", "café", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateStoreName(tc.input)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSanitizeStoreName(t *testing.T) {
	assert.Equal(t, "mystore", SanitizeStoreName("My Store!"))
	assert.Equal(t, "shop-a", SanitizeStoreName("shop-a"))
	assert.Equal(t, "", SanitizeStoreName("!!!"))
}

func TestStoreNormalize(t *testing.T) {
	s := Store{
		ID:            "1",
		Name:          "shop",
		Status:        StatusProvisioning,
		URL:           "http://shop.localhost",
		AdminUser:     "user",
		AdminPassword: "secret",
	}
	n := s.Normalize()
	assert.Empty(t, n.URL)
	assert.Empty(t, n.AdminUser)
	assert.Empty(t, n.AdminPassword)

	s.Status = StatusReady
	n = s.Normalize()
	assert.Equal(t, "http://shop.localhost", n.URL)
	assert.Equal(t, "secret", n.AdminPassword)

	s.Status = "UNKNOWN"
	assert.Equal(t, StatusProvisioning, s.Normalize().Status)
}

func TestStoreRedacted(t *testing.T) {
	s := Store{Status: StatusReady, AdminPassword: "secret"}
	assert.NotContains(t, s.Redacted().AdminPassword, "secret")
	assert.Equal(t, "secret", s.AdminPassword, "Redacted must not mutate the receiver")
}

func TestCredentialsStringRedactsPassword(t *testing.T) {
	c := Credentials{URL: "https://s1.example", AdminUser: "admin", AdminPassword: "x-secret"}
	out := c.String()
	assert.Contains(t, out, "https://s1.example")
	assert.Contains(t, out, "admin")
	assert.NotContains(t, out, "x-secret")
}

func TestStoreUnmarshalBackendPayload(t *testing.T) {
	payload := `{
		"id": "3f1c2a9e-8d4b-4c11-9a57-1b2c3d4e5f60",
		"name": "shop-a",
		"status": "PROVISIONING",
		"url": null,
		"admin_user": null,
		"admin_password": null,
		"created_at": "2025-03-01T10:20:30.123456"
	}`

	var s Store
	require.NoError(t, json.Unmarshal([]byte(payload), &s))
	assert.Equal(t, "shop-a", s.Name)
	assert.Equal(t, StatusProvisioning, s.Status)
	assert.Empty(t, s.URL)
	assert.True(t, s.CreatedAt.Equal(time.Date(2025, 3, 1, 10, 20, 30, 123456000, time.UTC)))
}

func TestTimestampUnmarshal(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-03-01T10:20:30Z"`), &ts))
	assert.Equal(t, 2025, ts.Year())

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
