package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homepage-aggregator/internal/content"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[string][]byte
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) LoadSections(context.Context) ([]SectionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	var out []SectionRow
	for k, v := range m.rows {
		out = append(out, SectionRow{Name: k, Payload: v})
	}
	return out, nil
}

func (m *memStore) SaveSection(_ context.Context, name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.rows == nil {
		m.rows = map[string][]byte{}
	}
	m.rows[name] = payload
	m.saves++
	return nil
}

func TestFallback_EmptyUntilRefreshed(t *testing.T) {
	f := NewFallback(&memStore{})
	_, ok := f.Section("hero")
	assert.False(t, ok)
}

func TestFallback_RefreshAndSection(t *testing.T) {
	store := &memStore{rows: map[string][]byte{
		"hero":   []byte(`[{"title": "Stream", "targetId": "h1"}]`),
		"broken": []byte(`{not json`),
	}}
	f := NewFallback(store)
	require.NoError(t, f.Refresh(context.Background()))

	nodes, ok := f.Section("hero")
	require.True(t, ok)
	assert.Equal(t, []content.Node{{"title": "Stream", "targetId": "h1"}}, nodes)

	nodes[0]["title"] = "mutated"
	again, _ := f.Section("hero")
	assert.Equal(t, "Stream", again[0]["title"])

	_, ok = f.Section("broken")
	assert.False(t, ok)
	_, ok = f.Section("footer")
	assert.False(t, ok)
}

func TestFallback_SaveSkipsUnchanged(t *testing.T) {
	store := &memStore{rows: map[string][]byte{"hero": []byte(`[{"title":"A", "b": 1}]`)}}
	f := NewFallback(store)
	require.NoError(t, f.Refresh(context.Background()))

	require.NoError(t, f.Save(context.Background(), "hero", []content.Node{{"b": float64(1), "title": "A"}}))
	assert.Equal(t, 0, store.saves)

	require.NoError(t, f.Save(context.Background(), "hero", []content.Node{{"title": "B"}}))
	assert.Equal(t, 1, store.saves)

	nodes, ok := f.Section("hero")
	require.True(t, ok)
	assert.Equal(t, "B", nodes[0]["title"])

	require.NoError(t, f.Save(context.Background(), "hero", []content.Node{{"title": "B"}}))
	assert.Equal(t, 1, store.saves)
}

func TestFallback_Errors(t *testing.T) {
	boom := errors.New("boom")

	f := NewFallback(&memStore{loadErr: boom})
	assert.ErrorIs(t, f.Refresh(context.Background()), boom)

	f = NewFallback(&memStore{saveErr: boom})
	assert.ErrorIs(t, f.Save(context.Background(), "hero", []content.Node{{"title": "x"}}), boom)
	_, ok := f.Section("hero")
	assert.False(t, ok)
}
