package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/resumiro/internal/model"
)

func TestAppendAndListEvents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, kind := range []model.EventKind{model.EventUserAdded, model.EventCompanyAdded, model.EventCompanyDeleted} {
		e := &model.Event{Kind: kind, Entity: "x", EntityID: "1", Actor: "alice"}
		require.NoError(t, db.AppendEvent(ctx, e))
		assert.NotEmpty(t, e.ID)
		assert.NotZero(t, e.Seq)
	}

	all, err := db.ListEvents(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.EventUserAdded, all[0].Kind)

	tail, err := db.ListEvents(ctx, all[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, model.EventCompanyAdded, tail[0].Kind)

	page, err := db.ListEvents(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestListEvents_ClampsLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < maxEventPage+5; i++ {
		require.NoError(t, db.AppendEvent(ctx, &model.Event{Kind: model.EventUserAdded, Entity: "user", EntityID: "0xa", Actor: "0xa"}))
	}

	page, err := db.ListEvents(ctx, 0, 1<<50)
	require.NoError(t, err)
	assert.Len(t, page, maxEventPage)

	page, err = db.ListEvents(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, defaultEventPage)
}
