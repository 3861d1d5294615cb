package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIdentityRepository struct {
	mock.Mock
}

func (m *MockIdentityRepository) FindByName(ctx context.Context, name string) (*model.Identity, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func (m *MockIdentityRepository) Create(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Identity), args.Error(1)
}

func TestIdentityDisplayName(t *testing.T) {
	assert.Equal(t, "Shop", IdentityDisplayName("Shop", "", ""))
	assert.Equal(t, "Shop (100)", IdentityDisplayName("Shop", "", "100"))
	assert.Equal(t, "Shop (100/42)", IdentityDisplayName("Shop", "42", "100"))
	assert.Equal(t, "Shop", IdentityDisplayName("Shop", "42", ""))
}

func TestIdentityResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("blank name yields no identity", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		r := NewIdentityResolver(repo)

		id, err := r.Resolve(ctx, nil, ptr("42"), ptr("100"))
		require.NoError(t, err)
		assert.Nil(t, id)

		id, err = r.Resolve(ctx, ptr("   "), nil, nil)
		require.NoError(t, err)
		assert.Nil(t, id)
		repo.AssertNotCalled(t, "FindByName", mock.Anything, mock.Anything)
	})

	t.Run("reuses existing identity", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		repo.On("FindByName", ctx, "Shop (100/42)").Return(&model.Identity{ID: 5, Name: "Shop (100/42)"}, nil)
		r := NewIdentityResolver(repo)

		id, err := r.Resolve(ctx, ptr(" Shop "), ptr(" 42"), ptr("100 "))
		require.NoError(t, err)
		assert.EqualValues(t, 5, *id)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("creates missing identity with bank details", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		repo.On("FindByName", ctx, "Shop (100)").Return(nil, repository.ErrIdentityNotFound)
		repo.On("Create", ctx, mock.MatchedBy(func(i *model.Identity) bool {
			return i.Name == "Shop (100)" && *i.BankCode == "100" && i.AccountNumber == nil
		})).Return(&model.Identity{ID: 8}, nil)
		r := NewIdentityResolver(repo)

		id, err := r.Resolve(ctx, ptr("Shop"), nil, ptr("100"))
		require.NoError(t, err)
		assert.EqualValues(t, 8, *id)
		repo.AssertExpectations(t)
	})

	t.Run("storage error is returned", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		repo.On("FindByName", ctx, "Shop").Return(nil, errors.New("db down"))
		r := NewIdentityResolver(repo)

		_, err := r.Resolve(ctx, ptr("Shop"), nil, nil)
		assert.Error(t, err)
	})

	t.Run("batch memo avoids repeated lookups", func(t *testing.T) {
		repo := new(MockIdentityRepository)
		repo.On("FindByName", ctx, "Shop").Return(nil, repository.ErrIdentityNotFound).Once()
		repo.On("Create", ctx, mock.Anything).Return(&model.Identity{ID: 3}, nil).Once()
		r := NewIdentityResolver(repo)

		seen := map[string]int64{}
		a, err := r.resolve(ctx, seen, ptr("Shop"), nil, nil)
		require.NoError(t, err)
		b, err := r.resolve(ctx, seen, ptr("Shop"), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, *a, *b)
		repo.AssertExpectations(t)
	})
}
