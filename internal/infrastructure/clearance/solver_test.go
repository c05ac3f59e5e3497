package clearance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solverServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req solverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode solver request: %v", err)
		}
		if req.Mode != "waf-session" || req.URL != DefaultTargetURL {
			t.Errorf("unexpected solver request %+v", req)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSolverAcquire(t *testing.T) {
	srv := solverServer(t, http.StatusOK, `{
		"cookies": [{"name": "__cf_bm", "value": "x"}, {"name": "cf_clearance", "value": "tok-123"}],
		"headers": {"User-Agent": "Mozilla/5.0 test"}
	}`)

	c, err := NewSolverClient(srv.URL, "", "", time.Second).Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", c.ClearanceToken)
	assert.Equal(t, "Mozilla/5.0 test", c.UserAgent)
}

func TestSolverAcquireFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"non-200":        {http.StatusBadGateway, "upstream down"},
		"missing cookie": {http.StatusOK, `{"cookies": [], "headers": {"user-agent": "ua"}}`},
		"missing ua":     {http.StatusOK, `{"cookies": [{"name": "cf_clearance", "value": "t"}], "headers": {}}`},
		"malformed":      {http.StatusOK, `{"cookies": [`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := solverServer(t, tc.status, tc.body)
			_, err := NewSolverClient(srv.URL, "", "", time.Second).Acquire(context.Background())
			var acqErr *AcquisitionError
			require.True(t, errors.As(err, &acqErr), "expected AcquisitionError, got %v", err)
		})
	}
}
