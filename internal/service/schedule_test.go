package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
)

func TestScheduleAdd_ValidatesInput(t *testing.T) {
	f := newFixture(t, "sk-test")

	tests := []struct {
		name  string
		in    ScheduleInput
		field string
	}{
		{"missing post", ScheduleInput{Date: "2026-11-01", Time: "09:00"}, "post"},
		{"bad date", ScheduleInput{Post: "x", Date: "2026/11/01", Time: "09:00"}, "date"},
		{"unpadded time", ScheduleInput{Post: "x", Date: "2026-11-01", Time: "9:00"}, "time"},
		{"unknown season", ScheduleInput{Post: "x", Date: "2026-11-01", Time: "09:00", Season: "rainy"}, "season"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.schedule.Add(context.Background(), tt.in)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
			assert.Contains(t, domainErr.Details, tt.field)
		})
	}
}

func TestScheduleAdd_SortsAscending(t *testing.T) {
	f := newFixture(t, "sk-test")
	ctx := context.Background()

	_, err := f.schedule.Add(ctx, ScheduleInput{Post: "later", Date: "2026-12-01", Time: "10:00"})
	require.NoError(t, err)
	_, err = f.schedule.Add(ctx, ScheduleInput{Post: "sooner", Date: "2026-11-01", Time: "18:30"})
	require.NoError(t, err)

	list, err := f.schedule.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sooner", list[0].Post)
	assert.Equal(t, []string{}, list[0].Hashtags)
}

func TestScheduleAddFromBatch_CarriesBatchContext(t *testing.T) {
	f := newFixture(t, "sk-test")
	ctx := context.Background()
	f.workspace.Select(testSelection)
	batch, err := f.gen.GenerateForWorkspace(ctx, "")
	require.NoError(t, err)

	// Changing the selection afterwards does not affect the scheduled copy.
	f.workspace.Select(domain.Selection{Season: "winter", Purpose: "trust", Tone: "local"})

	scheduled, err := f.schedule.AddFromBatch(ctx, 2, SlotInput{Date: "2026-11-03", Time: "08:00"})
	require.NoError(t, err)

	assert.Equal(t, "C", scheduled.Post)
	assert.Equal(t, batch.Hashtags, scheduled.Hashtags)
	assert.Equal(t, testSelection.Season, scheduled.Season)
	assert.Equal(t, testSelection.Tone, scheduled.Tone)
}

func TestScheduleAddFromBatch_NoBatch(t *testing.T) {
	f := newFixture(t, "sk-test")

	_, err := f.schedule.AddFromBatch(context.Background(), 0, SlotInput{Date: "2026-11-03", Time: "08:00"})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestScheduleRemove(t *testing.T) {
	f := newFixture(t, "sk-test")
	ctx := context.Background()

	added, err := f.schedule.Add(ctx, ScheduleInput{Post: "x", Date: "2026-11-01", Time: "09:00"})
	require.NoError(t, err)

	require.NoError(t, f.schedule.Remove(ctx, added.ID))
	assert.True(t, domainerrors.Is(f.schedule.Remove(ctx, added.ID), domainerrors.ErrNotFound))

	list, err := f.schedule.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
