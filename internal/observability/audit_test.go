package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogger_Record(t *testing.T) {
	var buf bytes.Buffer
	prev := GetAuditLogger()
	SetAuditLogger(NewAuditLogger(zerolog.New(&buf)))
	defer SetAuditLogger(prev)

	RecordCommandAudit(context.Background(), "mv", "admin", "success", map[string]interface{}{
		"args": []string{"/a", "/b"},
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "command", entry["type"])
	assert.Equal(t, "command:mv", entry["action"])
	assert.Equal(t, "admin", entry["actor"])
	assert.Equal(t, "success", entry["status"])
	assert.NotNil(t, entry["metadata"])
}

func TestMetricsRecorders(t *testing.T) {
	EnsureRegistered()

	assert.NotPanics(t, func() {
		RecordStoreOperation("memory", "get_node", 0, true)
		RecordStoreOperation("memory", "get_node", 0, false)
		RecordStoreSave("memory", 0)
		SetPendingChanges(3)
		RecordCommand("ls", 0, true)
		RecordCwdChange()
		RecordFindResults(4)
	})
	assert.NotNil(t, MetricsHandler())
}

func TestInitAuditLogger(t *testing.T) {
	prev := GetAuditLogger()
	defer SetAuditLogger(prev)

	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))

	RecordStoreAudit(context.Background(), "save", "editor", "failure", nil)
	require.NoError(t, GetAuditLogger().Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"store:save"`)
	assert.Contains(t, string(data), `"status":"failure"`)
	assert.NotContains(t, string(data), "metadata")
}

func TestMetricsHandler_Exposition(t *testing.T) {
	RecordCommand("pwd", 0, true)
	SetPendingChanges(2)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, `nodeshell_command_total{command="pwd",status="success"}`)
	assert.Contains(t, body, "nodeshell_pending_changes 2")
}
