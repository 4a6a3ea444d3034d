package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"result": "success"}

	err := WriteOK(w, data)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "success", dataMap["result"])
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"id": "123"}

	err := WriteCreated(w, data)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "123", dataMap["id"])
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"query": "query is required"}

	err := WriteBadRequest(w, "Validation failed", details)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	response := decodeError(t, w)
	assert.Equal(t, "bad_request", response.Error)
	assert.Equal(t, "Validation failed", response.Message)
	assert.Equal(t, "query is required", response.Details["query"])
}

func TestWriteNotFound(t *testing.T) {
	t.Run("with custom message", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteNotFound(w, "plan not found")
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, w.Code)

		response := decodeError(t, w)
		assert.Equal(t, "not_found", response.Error)
		assert.Equal(t, "plan not found", response.Message)
	})

	t.Run("with empty message", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteNotFound(w, "")
		require.NoError(t, err)

		assert.Equal(t, "Resource not found", decodeError(t, w).Message)
	})
}

func TestWriteBadGateway(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"sessionId": "abc"}

	err := WriteBadGateway(w, "completion provider unavailable", details)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	response := decodeError(t, w)
	assert.Equal(t, "bad_gateway", response.Error)
	assert.Equal(t, "abc", response.Details["sessionId"])
}

func TestWriteGatewayTimeout(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteGatewayTimeout(w, "", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)

	response := decodeError(t, w)
	assert.Equal(t, "timeout", response.Error)
	assert.Equal(t, "Request timed out", response.Message)
	assert.Nil(t, response.Details)
}

func TestWriteInternalServerError(t *testing.T) {
	t.Run("with custom message", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteInternalServerError(w, "Database connection failed", nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		response := decodeError(t, w)
		assert.Equal(t, "internal_error", response.Error)
		assert.Equal(t, "Database connection failed", response.Message)
	})

	t.Run("with empty message", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteInternalServerError(w, "", nil)
		require.NoError(t, err)

		assert.Equal(t, "Internal server error", decodeError(t, w).Message)
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name              string
		status            int
		expectedErrorType string
	}{
		{name: "bad request", status: http.StatusBadRequest, expectedErrorType: "bad_request"},
		{name: "not found", status: http.StatusNotFound, expectedErrorType: "not_found"},
		{name: "method not allowed", status: http.StatusMethodNotAllowed, expectedErrorType: "method_not_allowed"},
		{name: "bad gateway", status: http.StatusBadGateway, expectedErrorType: "bad_gateway"},
		{name: "unavailable", status: http.StatusServiceUnavailable, expectedErrorType: "unavailable"},
		{name: "timeout", status: http.StatusGatewayTimeout, expectedErrorType: "timeout"},
		{name: "unknown status defaults to internal error", status: http.StatusTeapot, expectedErrorType: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := WriteError(w, tt.status, "message", nil)
			require.NoError(t, err)

			assert.Equal(t, tt.status, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, tt.expectedErrorType, response.Error)
			assert.Equal(t, "message", response.Message)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{name: "valid", body: `{"query":"cheap nbn"}`, want: "cheap nbn"},
		{name: "empty body", body: ``, wantErr: "empty"},
		{name: "malformed", body: `{"query":`, wantErr: "invalid request body"},
		{name: "unknown field", body: `{"query":"x","foo":1}`, wantErr: "unknown field"},
		{name: "trailing object", body: `{"query":"x"}{"query":"y"}`, wantErr: "single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var p payload
			err := DecodeJSON(r, &p)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Query)
		})
	}
}
