package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runway-live-backend/internal/models"
	"runway-live-backend/internal/repository"
)

func newShowFixture(lookIDs ...string) (*ShowService, *fakeLooks) {
	looks := make([]*models.Look, 0, len(lookIDs))
	for i, id := range lookIDs {
		looks = append(looks, &models.Look{ID: id, Sequence: i + 1, Name: id})
	}
	fake := newFakeLooks(looks...)
	return NewShowService(fake, nil), fake
}

func TestActivate_SwapsActiveLook(t *testing.T) {
	svc, fake := newShowFixture("look-1", "look-2")
	ctx := context.Background()

	look, err := svc.Activate(ctx, "look-1")
	require.NoError(t, err)
	assert.True(t, look.Active)
	assert.Equal(t, 1, fake.activeCount())

	look, err = svc.Activate(ctx, "look-2")
	require.NoError(t, err)
	assert.Equal(t, "look-2", look.ID)
	assert.Equal(t, 1, fake.activeCount())

	active, err := svc.ActiveLook(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "look-2", active.ID)
}

func TestActivate_LastCallWins(t *testing.T) {
	svc, fake := newShowFixture("look-1", "look-2", "look-3")
	ctx := context.Background()

	_, err := svc.Activate(ctx, "look-1")
	require.NoError(t, err)

	// Two quick successive activations; the later one fully supersedes
	// the earlier, never merges with it.
	_, err = svc.Activate(ctx, "look-2")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = svc.Activate(ctx, "look-3")
	require.NoError(t, err)

	active, err := svc.ActiveLook(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "look-3", active.ID)
	assert.Equal(t, 1, fake.activeCount())
}

func TestActivate_ConcurrentNeverLeavesTwoActive(t *testing.T) {
	const workers = 20

	ids := make([]string, workers)
	for i := range ids {
		ids[i] = fmt.Sprintf("look-%d", i)
	}
	svc, fake := newShowFixture(ids...)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(lookID string) {
			defer wg.Done()
			_, err := svc.Activate(context.Background(), lookID)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, fake.activeCount(), "exactly one look active at quiescence")
}

func TestActivate_NotFoundKeepsCurrentLook(t *testing.T) {
	svc, fake := newShowFixture("look-1")
	ctx := context.Background()

	_, err := svc.Activate(ctx, "look-1")
	require.NoError(t, err)

	_, err = svc.Activate(ctx, "look-404")
	require.ErrorIs(t, err, repository.ErrLookNotFound)

	active, err := svc.ActiveLook(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "look-1", active.ID, "failed activation must not deactivate the current look")
	assert.Equal(t, 1, fake.activeCount())
}

func TestActiveLook_NoneActive(t *testing.T) {
	svc, _ := newShowFixture("look-1")

	active, err := svc.ActiveLook(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Equal(t, "", svc.ActiveLookID(context.Background()))
}
