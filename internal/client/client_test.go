package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apihttp "github.com/GriffinCanCode/plugstore/internal/api/http"
	"github.com/GriffinCanCode/plugstore/internal/domain/root"
	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r, err := root.New(root.Options{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })

	router := gin.New()
	apihttp.Register(router, apihttp.NewHandlers(r, plugin.NewManager(r, plugin.ManagerOptions{}), nil))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return New(srv.URL, DefaultOptions())
}

func TestClientRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	h, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)

	empty, err := c.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)

	id, err := c.NodeID(ctx, "https://a.test", "https://b.test", "persistent")
	require.NoError(t, err)
	assert.Len(t, id, 64)

	names, err := c.Names(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, names)

	u, err := c.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.Salts)

	n, err := c.Forget(ctx, "a.test")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.ClearAll(ctx))
	require.NoError(t, c.EndPrivateSession(ctx))
}

func TestClientErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.Names(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.NodeID(ctx, "", "", "incognito")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "incognito")
}

func TestClientRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"empty":true}`))
	}))
	defer srv.Close()

	opts := DefaultOptions()
	opts.MinWait = time.Millisecond
	opts.MaxWait = 5 * time.Millisecond
	c := New(srv.URL, opts)

	empty, err := c.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Equal(t, int32(3), calls.Load())
}
