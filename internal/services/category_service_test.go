package services

import (
	"context"
	"testing"

	"spendwise/internal/core"
	"spendwise/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryService_SeedsOnFirstList(t *testing.T) {
	ctx := context.Background()
	svc := NewCategoryService(memory.New())

	cats, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, cats, len(core.DefaultCategories))
	assert.Equal(t, "Food", cats[0].Name)
	assert.Equal(t, "Other", cats[len(cats)-1].Name)

	again, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, cats, again)
}
