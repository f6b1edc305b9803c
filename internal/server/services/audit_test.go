package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/logging"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_RecordAndList(t *testing.T) {
	cat := newMemCatalog()
	rm := &fakeRepoManager{cat: cat}
	s := NewAuditService(newTxDB(t), rm, logging.Discard())
	ctx := context.Background()

	s.Record(ctx, adminRC(), ActionViewDocument, "view document 5", EntityDocument, 5)
	s.Record(ctx, nil, ActionLogin, "anonymous", "", 0)

	items, total, err := s.List(ctx, adminRC(), models.LogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	first := items[0]
	require.NotNil(t, first.UserID)
	assert.Equal(t, int64(1), *first.UserID)
	require.NotNil(t, first.Username)
	assert.Equal(t, "admin", *first.Username)
	assert.Equal(t, "127.0.0.1", first.IPAddress)
	require.NotNil(t, first.EntityType)
	assert.Equal(t, EntityDocument, *first.EntityType)
	require.NotNil(t, first.EntityID)
	assert.Equal(t, int64(5), *first.EntityID)

	second := items[1]
	assert.Nil(t, second.UserID)
	assert.Nil(t, second.EntityType)
	assert.Nil(t, second.EntityID)

	_, _, err = s.List(ctx, userRC(), models.LogFilter{})
	assert.ErrorIs(t, err, common.ErrorForbidden)
}

func TestAuditService_RecordFailureIsSwallowed(t *testing.T) {
	cat := newMemCatalog()
	cat.logErr = errors.New("db down")
	s := NewAuditService(newTxDB(t), &fakeRepoManager{cat: cat}, logging.Discard())

	assert.NotPanics(t, func() {
		s.Record(context.Background(), adminRC(), ActionDeleteDocument, "x", EntityDocument, 1)
	})
	assert.Empty(t, cat.actions())
}

func TestAuditService_PurgeBefore(t *testing.T) {
	cat := newMemCatalog()
	s := NewAuditService(newTxDB(t), &fakeRepoManager{cat: cat}, logging.Discard())
	ctx := context.Background()

	cat.logs = []models.ActivityLog{
		{ID: 1, Action: "old", CreatedAt: time.Now().Add(-100 * 24 * time.Hour)},
		{ID: 2, Action: "new", CreatedAt: time.Now()},
	}

	n, err := s.PurgeBefore(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{"new"}, cat.actions())

	_, err = s.PurgeBefore(ctx, 0)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
