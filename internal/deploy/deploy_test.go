package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitecycle/internal/errors"
)

func TestTrigger(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"job":{"id":"B4ApVubg9E1DES17qQ8t","state":"PENDING","createdAt":1746022973310}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/v1/integrations/deploy/prj/secret", 5*time.Second)
	require.NoError(t, err)

	job, err := c.Trigger(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "B4ApVubg9E1DES17qQ8t", job.ID)
	assert.Equal(t, "PENDING", job.State)
	assert.Equal(t, int64(1746022973310), job.Created().UnixMilli())
}

func TestTriggerErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, code: errors.ErrCodeDeployStatus},
		{name: "not found", status: http.StatusNotFound, body: `not found`, code: errors.ErrCodeDeployStatus},
		{name: "bad json", status: http.StatusOK, body: `{`, code: errors.ErrCodeDeployRequest},
		{name: "no job", status: http.StatusOK, body: `{}`, code: errors.ErrCodeDeployRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL, time.Second)
			require.NoError(t, err)

			_, err = c.Trigger(context.Background())
			require.Error(t, err)
			assert.True(t, errors.IsDeployError(err))

			var se *errors.SiteError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, 1, calls, "no retry")
		})
	}
}

func TestTriggerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url+"/hook/secret-token", time.Second)
	require.NoError(t, err)

	_, err = c.Trigger(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsDeployError(err))
	assert.NotContains(t, errors.GetErrorContext(err)["url"], "secret-token")
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient("", time.Second)
	var se *errors.SiteError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errors.ErrCodeDeployHookUnset, se.Code)
}
