package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	mock_storage "github.com/at-ishikawa/leetrecall/internal/mocks/storage"
	"github.com/at-ishikawa/leetrecall/internal/schedule"
	"github.com/at-ishikawa/leetrecall/internal/storage"
)

var (
	day1 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 = day1.AddDate(0, 0, 1)
)

func newTestStore(kv storage.KV) *Store {
	return NewStore(kv, schedule.DefaultPolicy(), WithClock(func() time.Time { return day1 }))
}

func TestStore_InitReviewStateIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())

	created, err := store.InitReviewStateIfAbsent(ctx, "two-sum", day1)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.InitReviewStateIfAbsent(ctx, "two-sum", day2)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Get(ctx, "two-sum")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.Item)
	assert.Equal(t, &ReviewState{
		EaseFactor:         2.5,
		Interval:           1,
		ConsecutiveCorrect: 0,
		NextReviewAt:       day2,
		LastReviewedAt:     day1,
		History:            []HistoryEntry{{At: day1, Outcome: InitialOutcome}},
	}, got.State)
}

func TestStore_UpsertItem(t *testing.T) {
	tests := []struct {
		name    string
		patches []ItemPatch
		want    *Item
	}{
		{
			name: "creates the item",
			patches: []ItemPatch{
				{Title: "Two Sum", Difficulty: "Easy", Tags: []string{"array", "hash-table"}, CompletedAt: day1},
			},
			want: &Item{
				ID:              "two-sum",
				Title:           "Two Sum",
				Difficulty:      "Easy",
				Tags:            NewTagSet("array", "hash-table"),
				LastCompletedAt: day1,
				UpdatedAt:       day1,
			},
		},
		{
			name: "tags are merged and scalars overwritten",
			patches: []ItemPatch{
				{Title: "Two Sum", Difficulty: "Easy", Tags: []string{"array"}},
				{Title: "1. Two Sum", Tags: []string{"hash-table", "array"}, URL: "https://leetcode.com/problems/two-sum/"},
			},
			want: &Item{
				ID:         "two-sum",
				Title:      "1. Two Sum",
				Difficulty: "Easy",
				Tags:       NewTagSet("array", "hash-table"),
				URL:        "https://leetcode.com/problems/two-sum/",
				UpdatedAt:  day1,
			},
		},
		{
			name: "completion time only moves forward",
			patches: []ItemPatch{
				{CompletedAt: day2},
				{CompletedAt: day1},
			},
			want: &Item{
				ID:              "two-sum",
				Tags:            NewTagSet(),
				LastCompletedAt: day2,
				UpdatedAt:       day1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newTestStore(storage.NewMemoryKV())
			for _, patch := range tt.patches {
				_, err := store.UpsertItem(ctx, "two-sum", patch)
				require.NoError(t, err)
			}

			got, err := store.Get(ctx, "two-sum")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Item)
			assert.Nil(t, got.State)
		})
	}
}

func TestStore_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())
	_, err := store.InitReviewStateIfAbsent(ctx, "two-sum", day1)
	require.NoError(t, err)

	steps := []struct {
		outcome      schedule.Outcome
		wantInterval int
		wantStreak   int
		wantEase     float64
	}{
		{outcome: schedule.Good, wantInterval: 1, wantStreak: 1, wantEase: 2.5},
		{outcome: schedule.Good, wantInterval: 3, wantStreak: 2, wantEase: 2.5},
		{outcome: schedule.Good, wantInterval: 8, wantStreak: 3, wantEase: 2.5},
		{outcome: schedule.Again, wantInterval: 1, wantStreak: 0, wantEase: 2.3},
	}

	now := day1
	for i, step := range steps {
		now = now.Add(time.Hour)
		state, err := store.RecordOutcome(ctx, "two-sum", step.outcome, now)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantInterval, state.Interval, "step %d", i)
		assert.Equal(t, step.wantStreak, state.ConsecutiveCorrect, "step %d", i)
		assert.InDelta(t, step.wantEase, state.EaseFactor, 1e-9, "step %d", i)
		assert.Equal(t, now, state.LastReviewedAt, "step %d", i)
		assert.Equal(t, now.AddDate(0, 0, step.wantInterval), state.NextReviewAt, "step %d", i)
	}

	got, err := store.Get(ctx, "two-sum")
	require.NoError(t, err)
	outcomes := make([]string, 0, len(got.State.History))
	for _, h := range got.State.History {
		outcomes = append(outcomes, h.Outcome)
	}
	assert.Equal(t, []string{"initial", "good", "good", "good", "again"}, outcomes)
}

func TestStore_RecordOutcome_HistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())
	_, err := store.InitReviewStateIfAbsent(ctx, "two-sum", day1)
	require.NoError(t, err)

	var times []time.Time
	for i := 0; i < 15; i++ {
		at := day1.Add(time.Duration(i+1) * time.Minute)
		times = append(times, at)
		state, err := store.RecordOutcome(ctx, "two-sum", schedule.Outcomes[i%len(schedule.Outcomes)], at)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(state.History), schedule.HistoryLimit)
	}

	got, err := store.Get(ctx, "two-sum")
	require.NoError(t, err)
	require.Len(t, got.State.History, 10)
	assert.Equal(t, times[5], got.State.History[0].At)
	assert.Equal(t, times[14], got.State.History[9].At)
}

func TestStore_RecordOutcome_UnknownItemGetsDefaultState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())

	state, err := store.RecordOutcome(ctx, "lru-cache", schedule.Easy, day2)
	require.NoError(t, err)

	assert.InDelta(t, 2.65, state.EaseFactor, 1e-9)
	assert.Equal(t, 1, state.Interval)
	assert.Equal(t, 1, state.ConsecutiveCorrect)
	assert.Equal(t, []HistoryEntry{
		{At: day2, Outcome: InitialOutcome},
		{At: day2, Outcome: "easy"},
	}, state.History)
}

func TestStore_Get_NotFound(t *testing.T) {
	store := newTestStore(storage.NewMemoryKV())

	got, err := store.Get(context.Background(), "missing")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_All(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	store := newTestStore(kv)

	require.NoError(t, store.Update(ctx, []string{"a", "b"}, func(b *Batch) error {
		for _, id := range []string{"a", "b"} {
			if _, err := b.UpsertItem(id, ItemPatch{Title: id}); err != nil {
				return err
			}
			if _, err := b.InitReviewStateIfAbsent(id, day1); err != nil {
				return err
			}
		}
		return nil
	}))
	_, err := store.InitReviewStateIfAbsent(ctx, "orphan", day1)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, "review:broken", []byte("{not json")))

	records, err := store.All(ctx)
	require.NoError(t, err)

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "a", records[0].Item.Title)
	assert.NotNil(t, records[0].State)
	assert.Equal(t, "b", records[1].ID)
	assert.Equal(t, "orphan", records[2].ID)
	assert.Nil(t, records[2].Item)
}

func TestStore_Update_ErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())
	errAbort := errors.New("abort")

	err := store.Update(ctx, []string{"two-sum"}, func(b *Batch) error {
		if _, err := b.UpsertItem("two-sum", ItemPatch{Title: "Two Sum"}); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	got, err := store.Get(ctx, "two-sum")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBatch_Get(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(storage.NewMemoryKV())
	_, err := store.UpsertItem(ctx, "two-sum", ItemPatch{Title: "Two Sum"})
	require.NoError(t, err)

	err = store.Update(ctx, []string{"two-sum", "lru-cache"}, func(b *Batch) error {
		item, state, err := b.Get("two-sum")
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, "Two Sum", item.Title)
		assert.Nil(t, state)

		item.Title = "changed"
		_, err = b.InitReviewStateIfAbsent("two-sum", day1)
		require.NoError(t, err)

		item, state, err = b.Get("two-sum")
		require.NoError(t, err)
		assert.Equal(t, "Two Sum", item.Title, "Get returns copies")
		require.NotNil(t, state)
		assert.Equal(t, day2, state.NextReviewAt, "staged state is visible before commit")

		item, state, err = b.Get("lru-cache")
		require.NoError(t, err)
		assert.Nil(t, item)
		assert.Nil(t, state)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_Update_CommitsOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	kv := mock_storage.NewMockKV(ctrl)
	store := newTestStore(kv)

	kv.EXPECT().
		GetMulti(gomock.Any(), []string{"item:a", "review:a", "item:b", "review:b"}).
		Return(map[string][]byte{}, nil)
	kv.EXPECT().
		SetMulti(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entries map[string][]byte) error {
			keys := make([]string, 0, len(entries))
			for key := range entries {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			assert.Equal(t, []string{"item:a", "item:b", "review:a", "review:b"}, keys)
			return nil
		})

	err := store.Update(context.Background(), []string{"a", "b"}, func(b *Batch) error {
		for _, id := range []string{"a", "b"} {
			if _, err := b.UpsertItem(id, ItemPatch{}); err != nil {
				return err
			}
			if _, err := b.InitReviewStateIfAbsent(id, day1); err != nil {
				return err
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestStore_StorageUnavailable(t *testing.T) {
	unavailable := fmt.Errorf("%w: connection refused", storage.ErrUnavailable)

	tests := []struct {
		name  string
		setup func(kv *mock_storage.MockKV)
		call  func(store *Store) error
	}{
		{
			name: "read fails",
			setup: func(kv *mock_storage.MockKV) {
				kv.EXPECT().GetMulti(gomock.Any(), gomock.Any()).Return(nil, unavailable)
			},
			call: func(store *Store) error {
				_, err := store.RecordOutcome(context.Background(), "two-sum", schedule.Good, day1)
				return err
			},
		},
		{
			name: "write fails",
			setup: func(kv *mock_storage.MockKV) {
				kv.EXPECT().GetMulti(gomock.Any(), gomock.Any()).Return(map[string][]byte{}, nil)
				kv.EXPECT().SetMulti(gomock.Any(), gomock.Any()).Return(unavailable)
			},
			call: func(store *Store) error {
				_, err := store.InitReviewStateIfAbsent(context.Background(), "two-sum", day1)
				return err
			},
		},
		{
			name: "scan fails",
			setup: func(kv *mock_storage.MockKV) {
				kv.EXPECT().Scan(gomock.Any(), "item:").Return(nil, unavailable)
			},
			call: func(store *Store) error {
				_, err := store.All(context.Background())
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			kv := mock_storage.NewMockKV(ctrl)
			tt.setup(kv)

			err := tt.call(newTestStore(kv))

			assert.ErrorIs(t, err, storage.ErrUnavailable)
		})
	}
}
