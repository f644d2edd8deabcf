package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"griefing/internal/models"
)

// exerciseRepository runs the behavior every Repository must share
func exerciseRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	suffix := uuid.NewString()[:8]
	factoryID := "CFACTORY" + suffix

	agreement := func(n int, staker string) *models.Agreement {
		return &models.Agreement{
			AgreementID:     fmt.Sprintf("CAGREEMENT%d%s", n, suffix),
			FactoryID:       factoryID,
			TemplateID:      "CTEMPLATE",
			TokenID:         "CTOKEN",
			Staker:          staker,
			Counterparty:    "GCOUNTER" + suffix,
			Ratio:           "2000000000000000000",
			RatioType:       "Dec",
			CountdownLength: 1000 * time.Second,
			Stake:           "0",
			GriefCost:       "0",
			StaticMetadata:  []byte("static"),
			Sequence:        1,
			CreatedAt:       base.Add(time.Duration(n) * time.Minute),
			UpdatedAt:       base.Add(time.Duration(n) * time.Minute),
		}
	}

	t.Run("agreements", func(t *testing.T) {
		stakerA, stakerB := "GSTAKERA"+suffix, "GSTAKERB"+suffix
		for i, staker := range []string{stakerA, stakerA, stakerB} {
			require.NoError(t, repo.SaveAgreement(ctx, agreement(i, staker)))
		}

		updated := agreement(0, stakerA)
		updated.Stake = "500000000000000000000"
		updated.Sequence = 3
		deadline := base.Add(time.Hour)
		updated.Deadline = &deadline
		require.NoError(t, repo.SaveAgreement(ctx, updated))

		// an older snapshot never overwrites a newer one
		stale := agreement(0, stakerA)
		stale.Sequence = 2
		require.NoError(t, repo.SaveAgreement(ctx, stale))

		got, err := repo.GetAgreement(ctx, updated.AgreementID)
		require.NoError(t, err)
		assert.Equal(t, "500000000000000000000", got.Stake)
		assert.Equal(t, uint64(3), got.Sequence)
		assert.Equal(t, 1000*time.Second, got.CountdownLength)
		require.NotNil(t, got.Deadline)
		assert.True(t, deadline.Equal(*got.Deadline))
		assert.Equal(t, []byte("static"), got.StaticMetadata)

		_, err = repo.GetAgreement(ctx, "CMISSING"+suffix)
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := repo.ListAgreements(ctx, models.AgreementFilter{Staker: stakerA})
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, agreement(1, stakerA).AgreementID, list[0].AgreementID)

		n, err := repo.CountAgreements(ctx, models.AgreementFilter{FactoryID: factoryID})
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		page, err := repo.ListAgreements(ctx, models.AgreementFilter{FactoryID: factoryID, Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, agreement(1, stakerA).AgreementID, page[0].AgreementID)
	})

	t.Run("events", func(t *testing.T) {
		source := "CSOURCE" + suffix
		var events []models.Event
		for i := 1; i <= 3; i++ {
			events = append(events, models.Event{
				EventID:   uuid.NewString(),
				SourceID:  source,
				EventType: models.EventStakeAdded,
				Sequence:  uint64(i),
				Data:      map[string]interface{}{"amount": fmt.Sprint(i)},
				Timestamp: base.Add(time.Duration(i) * time.Second),
			})
		}
		events[2].EventType = models.EventGriefed

		require.NoError(t, repo.SaveEvents(ctx, events))
		require.NoError(t, repo.SaveEvents(ctx, events[:1]))

		// same source and sequence under a fresh ID: the first write wins
		replay := events[1]
		replay.EventID = uuid.NewString()
		replay.EventType = models.EventStakeTaken
		require.NoError(t, repo.SaveEvents(ctx, []models.Event{replay}))

		got, err := repo.ListEvents(ctx, models.EventFilter{SourceID: source})
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, ev := range got {
			assert.Equal(t, uint64(i+1), ev.Sequence)
		}
		assert.Equal(t, "1", got[0].Data["amount"])
		assert.Equal(t, events[1].EventID, got[1].EventID)
		assert.Equal(t, models.EventStakeAdded, got[1].EventType)

		griefed, err := repo.ListEvents(ctx, models.EventFilter{SourceID: source, EventType: models.EventGriefed})
		require.NoError(t, err)
		require.Len(t, griefed, 1)
		assert.Equal(t, events[2].EventID, griefed[0].EventID)

		limited, err := repo.ListEvents(ctx, models.EventFilter{SourceID: source, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("registry", func(t *testing.T) {
		f := &models.Factory{
			FactoryID:    factoryID,
			RegistryID:   "CREGISTRY",
			Status:       models.FactoryRegistered,
			ExtraData:    []byte{0x01},
			AuthorizedAt: base,
		}
		require.NoError(t, repo.SaveFactory(ctx, f))

		retired := *f
		retired.Status = models.FactoryRetired
		at := base.Add(time.Hour)
		retired.RetiredAt = &at
		require.NoError(t, repo.SaveFactory(ctx, &retired))

		factories, err := repo.ListFactories(ctx)
		require.NoError(t, err)
		var found *models.Factory
		for _, got := range factories {
			if got.FactoryID == factoryID {
				found = got
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, models.FactoryRetired, found.Status)
		assert.Equal(t, []byte{0x01}, found.ExtraData)
		require.NotNil(t, found.RetiredAt)

		rec := &models.InstanceRecord{
			InstanceID:   "CINSTANCE" + suffix,
			FactoryID:    factoryID,
			RegistryID:   "CREGISTRY",
			InstanceType: "OneWayGriefing",
			Index:        0,
			Creator:      "GCREATOR",
			CreatedAt:    base,
		}
		require.NoError(t, repo.SaveInstance(ctx, rec))
		require.NoError(t, repo.SaveInstance(ctx, rec))

		got, err := repo.GetInstance(ctx, rec.InstanceID)
		require.NoError(t, err)
		assert.Equal(t, rec.FactoryID, got.FactoryID)
		assert.Equal(t, "OneWayGriefing", got.InstanceType)

		_, err = repo.GetInstance(ctx, "CNOPE"+suffix)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, repo.Ping(ctx))
}

func TestMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewMemoryRepository())
}

func TestMemoryRepositoryDropsAttachedState(t *testing.T) {
	repo := NewMemoryRepository()
	ev := models.Event{EventID: "e1", SourceID: "s", Agreement: &models.Agreement{}}
	require.NoError(t, repo.SaveEvents(context.Background(), []models.Event{ev}))

	got, err := repo.ListEvents(context.Background(), models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Agreement)
}

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := NewPostgresRepository(ctx, url)
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Migrate(ctx))
	exerciseRepository(t, repo)
}
