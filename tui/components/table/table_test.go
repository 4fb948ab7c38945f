package table

import (
	"testing"
	"time"

	"github.com/grovetools/storefront/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRowHidesPassword(t *testing.T) {
	s := models.Store{
		ID:            "abc",
		Name:          "shop",
		Status:        models.StatusReady,
		URL:           "http://shop.localhost",
		AdminUser:     "user",
		AdminPassword: "hunter2",
		CreatedAt:     models.Timestamp{Time: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)},
	}
	row := Row(s)
	assert.Equal(t, []string{"shop", "READY", "http://shop.localhost", "user", "2025-01-02 03:04", "abc"}, row)
	assert.NotContains(t, row, "hunter2")
}

func TestRowPlaceholders(t *testing.T) {
	row := Row(models.Store{ID: "x", Name: "new", Status: models.StatusProvisioning})
	assert.Equal(t, []string{"new", "PROVISIONING", "-", "-", "-", "x"}, row)
}

func TestRenderStores(t *testing.T) {
	out := RenderStores(nil, []models.Store{{ID: "1", Name: "alpha", Status: models.StatusFailed}})
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "FAILED")
}

func TestRenderSelectedKeepsEveryRow(t *testing.T) {
	stores := []models.Store{
		{ID: "1", Name: "alpha", Status: models.StatusReady},
		{ID: "2", Name: "beta", Status: models.StatusFailed},
	}
	out := RenderSelected(nil, stores, 1)
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "beta")

	out = RenderSelected(nil, stores, 5)
	assert.Contains(t, out, "beta")
}
