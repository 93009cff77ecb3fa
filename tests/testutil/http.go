package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ServeJSON sends a JSON request through a full engine and returns the
// recorder plus the decoded response body. Use this when the test needs
// routing and the middleware stack, not just one handler.
func ServeJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), "Failed to unmarshal response body")
	}
	return w, decoded
}

// AssertSuccessEnvelope asserts a decoded body is a successful API response.
func AssertSuccessEnvelope(t *testing.T, body map[string]interface{}) {
	t.Helper()

	success, ok := body["success"].(bool)
	require.True(t, ok, "Expected success field in response")
	assert.True(t, success, "Expected success to be true")
	assert.Nil(t, body["error"], "Expected no error")
}

// AssertErrorEnvelope asserts a decoded body is an error API response with
// the given code.
func AssertErrorEnvelope(t *testing.T, body map[string]interface{}, expectedCode string) {
	t.Helper()

	success, ok := body["success"].(bool)
	require.True(t, ok, "Expected success field in response")
	assert.False(t, success, "Expected success to be false")

	errMap, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "Expected error object in response")
	assert.Equal(t, expectedCode, errMap["code"], "Unexpected error code")
}
