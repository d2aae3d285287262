package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/foreman/internal/adapters/memory"
	"github.com/eleven-am/foreman/internal/domain"
	"github.com/eleven-am/foreman/internal/xjson"
)

func TestDataclips_InsertAndGet(t *testing.T) {
	d := NewDataclips(memory.NewStore(), nil)
	ctx := context.Background()

	body := xjson.RawMessage(`{"order_id": 42}`)
	clip, err := d.Insert(ctx, body, "proj-1", domain.DataclipHTTPRequest)
	require.NoError(t, err)
	require.NotEmpty(t, clip.ID)

	got, err := d.Get(ctx, clip.ID)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", got.ProjectID)
	assert.Equal(t, domain.DataclipHTTPRequest, got.Kind)
	assert.JSONEq(t, `{"order_id": 42}`, string(got.Body))
}

func TestDataclips_GetMissing(t *testing.T) {
	d := NewDataclips(memory.NewStore(), nil)

	_, err := d.Get(context.Background(), "nope")
	assert.True(t, domain.IsNotFound(err))
}
