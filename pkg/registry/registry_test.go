package registry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vsf "marketplace-chat/internal/workers/catalog/validate-search-filters"
	hcm "marketplace-chat/internal/workers/chat/handle-chat-message"
	pcq "marketplace-chat/internal/workers/chat/parse-chat-query"
)

var fixedNow = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestShippedRegistryCoversWorkers(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)

	assert.Empty(t, reg.Validate())
	for _, taskType := range []string{vsf.TaskType, pcq.TaskType, hcm.TaskType} {
		a, ok := reg.FindByTaskType(taskType)
		require.True(t, ok, taskType)
		assert.Equal(t, StatusCompleted, a.ImplementationStatus)
	}
}

func TestAddUpdateSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "registry.json")
	reg := New(fixedNow)

	require.NoError(t, reg.Add(Activity{
		ID:          "parse-chat-query",
		DisplayName: "Parse Chat Query",
		Category:    "chat",
		TaskType:    "parse-chat-query",
		Timeout:     "5s",
	}, fixedNow))
	require.NoError(t, reg.Update("parse-chat-query", "status", StatusVerified, fixedNow.Add(time.Hour)))
	require.NoError(t, reg.Update("parse-chat-query", "retries", "2", fixedNow.Add(time.Hour)))
	require.NoError(t, reg.Save(path))

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	a, ok := loaded.Find("parse-chat-query")
	require.True(t, ok)
	assert.Equal(t, StatusVerified, a.ImplementationStatus)
	assert.Equal(t, 2, a.Retries)
	assert.Equal(t, "2026-10-18T10:00:00Z", loaded.LastUpdated)
}

func TestAdd_Duplicate(t *testing.T) {
	reg := New(fixedNow)
	require.NoError(t, reg.Add(Activity{ID: "a", TaskType: "a"}, fixedNow))

	err := reg.Add(Activity{ID: "a"}, fixedNow)
	assert.True(t, errors.Is(err, ErrActivityExists))
}

func TestUpdate_Errors(t *testing.T) {
	reg := New(fixedNow)
	require.NoError(t, reg.Add(Activity{ID: "a", TaskType: "a"}, fixedNow))

	tests := []struct {
		id, field, value string
	}{
		{"missing", "status", StatusCompleted},
		{"a", "status", "done"},
		{"a", "retries", "many"},
		{"a", "timeout", "soon"},
		{"a", "owner", "me"},
	}
	for _, tt := range tests {
		assert.Error(t, reg.Update(tt.id, tt.field, tt.value, fixedNow), "%s.%s", tt.id, tt.field)
	}
	assert.True(t, errors.Is(reg.Update("missing", "status", StatusCompleted, fixedNow), ErrActivityNotFound))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	reg := &ActivityRegistry{Activities: []Activity{
		{ID: "a", DisplayName: "A", Category: "chat", TaskType: "t"},
		{ID: "a", DisplayName: "A again", Category: "chat", TaskType: "t"},
		{ID: "b", TaskType: "u", ImplementationStatus: "unknown", Timeout: "later"},
		{DisplayName: "no id"},
	}}

	problems := reg.Validate()

	assert.Contains(t, problems, "duplicate activity id: a")
	assert.Contains(t, problems, "duplicate taskType: t")
	assert.Contains(t, problems, "activity b missing required field: displayName")
	assert.Contains(t, problems, "activity b missing required field: category")
	assert.Contains(t, problems, `activity b has invalid status "unknown"`)
	assert.Contains(t, problems, `activity b has invalid timeout "later"`)
	assert.Contains(t, problems, "activity missing required field: id")

	assert.Equal(t, []string{"registry contains no activities"}, New(fixedNow).Validate())
}
