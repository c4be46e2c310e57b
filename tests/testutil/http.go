package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// APIClient sends requests to an engine as one tenant and user
type APIClient struct {
	Engine   *gin.Engine
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// NewAPIClient builds a client for the test's tenant acting as ActorID
func NewAPIClient(t *testing.T, engine *gin.Engine) *APIClient {
	t.Helper()
	return &APIClient{Engine: engine, TenantID: TenantID(t), UserID: ActorID()}
}

// Envelope is the JSON body every endpoint answers with
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Do sends body as JSON. extra holds header name/value pairs.
func (c *APIClient) Do(t *testing.T, method, path string, body any, extra ...string) *httptest.ResponseRecorder {
	t.Helper()
	require.Zero(t, len(extra)%2, "headers come in name/value pairs")

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", c.TenantID.String())
	req.Header.Set("X-User-ID", c.UserID.String())
	for i := 0; i < len(extra); i += 2 {
		req.Header.Set(extra[i], extra[i+1])
	}

	w := httptest.NewRecorder()
	c.Engine.ServeHTTP(w, req)
	return w
}

// Decode checks the status and unmarshals the envelope data into out
func Decode(t *testing.T, w *httptest.ResponseRecorder, status int, out any) {
	t.Helper()
	env := envelope(t, w)
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	require.True(t, env.Success, "body: %s", w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
}

// ErrorCode checks the status and returns the envelope error code
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int) string {
	t.Helper()
	env := envelope(t, w)
	require.Equal(t, status, w.Code, "body: %s", w.Body.String())
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func envelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}
