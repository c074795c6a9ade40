package variable_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_GetAbsentReturnsNone(t *testing.T) {
	pool := variable.MustNewPool()

	tests := []struct {
		name string
		sel  variable.Selector
	}{
		{"empty", nil},
		{"short", variable.Selector{"node"}},
		{"missing node", variable.Selector{"node", "x"}},
		{"missing nested", variable.Selector{"node", "x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := pool.Get(tt.sel)
			assert.True(t, seg.IsNone())
			_, ok := pool.GetOK(tt.sel)
			assert.False(t, ok)
		})
	}
}

func TestPool_AddLastWins(t *testing.T) {
	pool := variable.MustNewPool()

	require.NoError(t, pool.Add(variable.Selector{"llm", "text"}, "first"))
	require.NoError(t, pool.Add(variable.Selector{"llm", "text"}, 2))

	seg := pool.Get(variable.Selector{"llm", "text"})
	assert.Equal(t, variable.TypeInteger, seg.Type())
	assert.Equal(t, int64(2), seg.Value())

	err := pool.Add(variable.Selector{"llm"}, "x")
	assert.ErrorIs(t, err, variable.ErrInvalidSelector)
}

func TestPool_NestedSelectors(t *testing.T) {
	pool := variable.MustNewPool()
	require.NoError(t, pool.Add(variable.Selector{"http", "body"}, map[string]any{
		"user": map[string]any{"name": "ada", "age": 36},
	}))
	require.NoError(t, pool.Add(variable.Selector{"start", "doc"}, variable.File{
		Filename:  "report.pdf",
		RemoteURL: "https://files/report.pdf",
		Size:      1024,
	}))

	assert.Equal(t, "ada", pool.Get(variable.Selector{"http", "body", "user", "name"}).Text())
	assert.Equal(t, int64(36), pool.Get(variable.Selector{"http", "body", "user", "age"}).Value())
	assert.True(t, pool.Get(variable.Selector{"http", "body", "user", "missing"}).IsNone())

	assert.Equal(t, "report.pdf", pool.Get(variable.Selector{"start", "doc", "filename"}).Text())
	assert.Equal(t, int64(1024), pool.Get(variable.Selector{"start", "doc", "size"}).Value())
}

func TestPool_SeededNamespaces(t *testing.T) {
	secret := variable.NewSecretVariable("api_key", "sk-0123456789")
	region, err := variable.NewVariable("region", "eu-west-1")
	require.NoError(t, err)
	turns, err := variable.NewVariable("turns", 4)
	require.NoError(t, err)

	pool, err := variable.NewPool(
		variable.WithSystemVariables(variable.SystemVariables{
			UserID:     "user-1",
			WorkflowID: "wf-1",
		}),
		variable.WithUserInputs(map[string]any{"query": "hello"}),
		variable.WithEnvironmentVariables(secret, region),
		variable.WithConversationVariables(turns),
	)
	require.NoError(t, err)

	assert.Equal(t, "user-1", pool.Get(variable.Selector{variable.SystemNamespace, "user_id"}).Text())
	assert.True(t, pool.Get(variable.Selector{variable.SystemNamespace, "query"}).IsNone())
	assert.Equal(t, variable.TypeSecret, pool.Get(variable.Selector{variable.EnvironmentNamespace, "api_key"}).Type())
	assert.Equal(t, "eu-west-1", pool.Get(variable.Selector{variable.EnvironmentNamespace, "region"}).Text())
	assert.Equal(t, int64(4), pool.Get(variable.Selector{variable.ConversationNamespace, "turns"}).Value())

	assert.Equal(t, map[string]any{"query": "hello"}, pool.UserInputs())
	assert.Equal(t, "wf-1", pool.SystemVariables().WorkflowID)

	inputs := pool.UserInputs()
	inputs["query"] = "mutated"
	assert.Equal(t, "hello", pool.UserInputs()["query"])
}

func TestPool_CommitIsAllOrNothing(t *testing.T) {
	pool := variable.MustNewPool()
	require.NoError(t, pool.Commit("node", map[string]any{"kept": "old"}))

	err := pool.Commit("node", map[string]any{
		"kept": "new",
		"a":    1,
		"bad":  make(chan int),
	})
	require.ErrorIs(t, err, variable.ErrUnsupportedValue)

	vars := pool.NodeVariables("node")
	assert.Len(t, vars, 1)
	assert.Equal(t, "old", pool.Get(variable.Selector{"node", "kept"}).Text())
	assert.True(t, pool.Get(variable.Selector{"node", "a"}).IsNone())
}

func TestPool_CommitConcurrentNodes(t *testing.T) {
	pool := variable.MustNewPool()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node := fmt.Sprintf("n%d", i)
			assert.NoError(t, pool.Commit(node, map[string]any{"a": i, "b": i * 2}))
			seg := pool.Get(variable.Selector{node, "b"})
			assert.Equal(t, int64(i*2), seg.Value())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 40, pool.Len())
}

func TestPool_Remove(t *testing.T) {
	pool := variable.MustNewPool()
	require.NoError(t, pool.Commit("n", map[string]any{"a": 1, "b": 2}))

	pool.Remove(variable.Selector{"n", "a"})
	assert.True(t, pool.Get(variable.Selector{"n", "a"}).IsNone())
	assert.False(t, pool.Get(variable.Selector{"n", "b"}).IsNone())

	pool.Remove(variable.Selector{"n"})
	assert.Equal(t, 0, pool.Len())
}

func TestPool_Flatten(t *testing.T) {
	pool := variable.MustNewPool()
	require.NoError(t, pool.Commit("llm", map[string]any{"score": 7}))

	assert.Equal(t, map[string]any{"llm.score": int64(7)}, pool.Flatten())
}
