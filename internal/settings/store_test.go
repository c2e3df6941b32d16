package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/storage"
)

func TestLoad_Defaults(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		stored string
		want   models.UserSettings
	}{
		{"missing", "", models.DefaultSettings()},
		{"malformed", `{"ageGroup":`, models.DefaultSettings()},
		{"unknown age group", `{"ageGroup":"senior","autoSave":true,"detailLevel":"brief"}`, models.UserSettings{AgeGroup: models.AgeAdult, AutoSave: true, DetailLevel: models.DetailBrief}},
		{"unknown detail level", `{"ageGroup":"child","autoSave":true,"detailLevel":"verbose"}`, models.UserSettings{AgeGroup: models.AgeChild, AutoSave: true, DetailLevel: models.DetailDetailed}},
		{"partial record", `{"autoSave":true}`, models.UserSettings{AgeGroup: models.AgeAdult, AutoSave: true, DetailLevel: models.DetailDetailed}},
		{"full record", `{"ageGroup":"teen","autoSave":true,"detailLevel":"brief"}`, models.UserSettings{AgeGroup: models.AgeTeen, AutoSave: true, DetailLevel: models.DetailBrief}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := storage.NewMemory()
			if tt.stored != "" {
				require.NoError(t, kv.Set(ctx, storage.KeyUserSettings, []byte(tt.stored)))
			}
			s := New(kv, zaptest.NewLogger(t))
			assert.Equal(t, tt.want, s.Load(ctx))
			assert.Equal(t, tt.want, s.Current())
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := New(kv, nil)

	next := models.UserSettings{AgeGroup: models.AgeChild, AutoSave: true, DetailLevel: models.DetailBrief}
	require.NoError(t, s.Save(ctx, next))
	assert.Equal(t, next, s.Current())

	raw, err := kv.Get(ctx, storage.KeyUserSettings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ageGroup":"child","autoSave":true,"detailLevel":"brief"}`, string(raw))

	assert.Equal(t, next, New(kv, nil).Load(ctx))
}

func TestSave_RejectsInvalid(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := New(kv, nil)

	err := s.Save(ctx, models.UserSettings{AgeGroup: "toddler", DetailLevel: models.DetailBrief})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, models.DefaultSettings(), s.Current())

	_, err = kv.Get(ctx, storage.KeyUserSettings)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
