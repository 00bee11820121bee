package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/irdecode/internal/decode"
	"github.com/audiolibrelab/irdecode/internal/trace"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Migrates(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	// running again is a no-op
	require.NoError(t, s.MigrateUp())
}

func TestSaveGetList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	rec := Record{
		Name:          "power_on",
		Source:        "ir_captures/power_on.csv",
		Durations:     trace.Durations{4420, 4380, 560, 1620, 560, 560},
		Bytes:         decode.CommandBytes{0xA1, 0x82, 0x42, 0x12, 0x00, 0x73},
		Summary:       "Power On, Mode Heat",
		ChecksumValid: true,
		Diagnostics:   []string{"ambiguous_bits: 1 ambiguous symbols"},
	}
	saved, err := s.Save(ctx, rec)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.Equal(t, rec.Durations, saved.Durations)
	assert.Equal(t, rec.Bytes, saved.Bytes)
	assert.True(t, saved.ChecksumValid)
	assert.Equal(t, rec.Diagnostics, saved.Diagnostics)
	assert.True(t, clock.Equal(saved.CreatedAt))

	clock = clock.Add(time.Hour)
	rec.Bytes = decode.CommandBytes{0xA1, 0x02}
	rec.ChecksumValid = false
	rec.Diagnostics = nil
	updated, err := s.Save(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID, "replacing by name keeps the id")
	assert.True(t, saved.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, clock.Equal(updated.UpdatedAt))
	assert.Equal(t, decode.CommandBytes{0xA1, 0x02}, updated.Bytes)
	assert.Empty(t, updated.Diagnostics)

	_, err = s.Save(ctx, Record{Name: "cool_24", Durations: trace.Durations{4400, 4400}, Bytes: decode.CommandBytes{0x01}})
	require.NoError(t, err)

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "power_on", all[0].Name)
	assert.Equal(t, "cool_24", all[1].Name)
}

func TestGetDelete_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, "missing"), ErrNotFound))

	_, err = s.Save(ctx, Record{Name: "x", Durations: trace.Durations{1}, Bytes: decode.CommandBytes{}})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "x"))
	_, err = s.Get(ctx, "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSave_RequiresName(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Save(context.Background(), Record{})
	assert.Error(t, err)
}

func TestDurationsCodec(t *testing.T) {
	in := trace.Durations{4420, 4380, 560, 1620, 65535, 1000000}
	blob, err := encodeDurations(in)
	require.NoError(t, err)
	assert.Less(t, len(blob), len(in)*8)

	out, err := decodeDurations(blob)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := encodeDurations(nil)
	require.NoError(t, err)
	out, err = decodeDurations(empty)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = decodeDurations([]byte{0xff})
	assert.Error(t, err)
}

func TestNewRecord(t *testing.T) {
	res := &decode.Result{
		Signal:      trace.Durations{4400, 4400},
		Bytes:       decode.CommandBytes{0xA1},
		Diagnostics: []decode.Diagnostic{{Kind: decode.DiagInsufficientBits, Message: "8 bits"}},
	}
	r := NewRecord("short", "short.txt", res)
	assert.Equal(t, "short", r.Name)
	assert.Empty(t, r.Summary)
	assert.Equal(t, []string{"insufficient_bits: 8 bits"}, r.Diagnostics)
}
