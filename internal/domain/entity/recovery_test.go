package entity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleEntries() []RecoveryEntry {
	return []RecoveryEntry{
		{MergedID: 2, Namespace: NamespacePart, OriginalID: 1, Name: "bumper"},
		{MergedID: 1, Namespace: NamespaceDamage, OriginalID: 1, Name: "bumper"},
	}
}

func TestRecoveryMap_Bijection(t *testing.T) {
	m, err := NewRecoveryMap(sampleEntries())
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	for _, e := range m.Entries() {
		got, ok := m.Resolve(e.MergedID)
		require.True(t, ok)
		require.Equal(t, e, got)

		id, ok := m.Lookup(e.Key())
		require.True(t, ok)
		require.Equal(t, e.MergedID, id)
	}

	_, ok := m.Resolve(99)
	require.False(t, ok)
}

func TestRecoveryMap_RejectsDuplicates(t *testing.T) {
	_, err := NewRecoveryMap([]RecoveryEntry{
		{MergedID: 1, Namespace: NamespaceDamage, OriginalID: 1, Name: "dent"},
		{MergedID: 1, Namespace: NamespacePart, OriginalID: 1, Name: "door"},
	})
	require.Error(t, err)

	_, err = NewRecoveryMap([]RecoveryEntry{
		{MergedID: 1, Namespace: NamespaceDamage, OriginalID: 1, Name: "dent"},
		{MergedID: 2, Namespace: NamespaceDamage, OriginalID: 1, Name: "dent"},
	})
	require.Error(t, err)

	_, err = NewRecoveryMap([]RecoveryEntry{{MergedID: 1, Namespace: "wheel", Name: "x"}})
	require.Error(t, err)
}

func TestRecoveryMap_VersionIsContentHash(t *testing.T) {
	a, err := NewRecoveryMap(sampleEntries())
	require.NoError(t, err)

	reversed := sampleEntries()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	b, err := NewRecoveryMap(reversed)
	require.NoError(t, err)
	require.Equal(t, a.Version(), b.Version())

	changed := sampleEntries()
	changed[0].Name = "hood"
	c, err := NewRecoveryMap(changed)
	require.NoError(t, err)
	require.NotEqual(t, a.Version(), c.Version())

	require.NoError(t, a.Verify(b.Version()))

	var mismatch *RecoveryMapMismatchError
	require.True(t, errors.As(a.Verify(c.Version()), &mismatch))
	require.Equal(t, a.Version(), mismatch.Expected)
}

func TestRecoveryMap_JSONRoundTrip(t *testing.T) {
	m, err := NewRecoveryMap(sampleEntries())
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var loaded RecoveryMap
	require.NoError(t, json.Unmarshal(data, &loaded))
	require.Equal(t, m.Version(), loaded.Version())
	require.Equal(t, m.Entries(), loaded.Entries())
}

func TestRecoveryMap_TamperedFile(t *testing.T) {
	m, err := NewRecoveryMap(sampleEntries())
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	cats := raw["categories"].([]any)
	cats[0].(map[string]any)["name"] = "scratch"
	tampered, err := json.Marshal(raw)
	require.NoError(t, err)

	var loaded RecoveryMap
	err = json.Unmarshal(tampered, &loaded)
	var mismatch *RecoveryMapMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, m.Version(), mismatch.Expected)
}
