package chain

import (
	"context"
	"errors"
	"testing"

	passstore "github.com/bnema/buswork-cli/internal/adapters/credential/pass"
	"github.com/bnema/buswork-cli/internal/domain"
	"github.com/bnema/buswork-cli/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewStoreRejectsNilStores(t *testing.T) {
	t.Parallel()

	_, err := NewStore(nil, mocks.NewMockCredentialStore(t))
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = NewStore(mocks.NewMockCredentialStore(t), nil)
	require.ErrorIs(t, err, errNilFallbackStore)
}

func TestSaveFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	credential := domain.Credential{Token: "tok123"}
	primary := mocks.NewMockCredentialStore(t)
	fallback := mocks.NewMockCredentialStore(t)
	primary.EXPECT().Save(mock.Anything, credential).Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Save(mock.Anything, credential).Return(nil).Once()

	store, err := NewStore(primary, fallback)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), credential))
}

func TestSaveUsesPrimaryOnly(t *testing.T) {
	t.Parallel()

	credential := domain.Credential{Token: "tok123"}
	primary := mocks.NewMockCredentialStore(t)
	primary.EXPECT().Save(mock.Anything, credential).Return(nil).Once()

	store, err := NewStore(primary, mocks.NewMockCredentialStore(t))
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), credential))
}

func TestSaveReportsBothFailures(t *testing.T) {
	t.Parallel()

	primary := mocks.NewMockCredentialStore(t)
	fallback := mocks.NewMockCredentialStore(t)
	primary.EXPECT().Save(mock.Anything, mock.Anything).Return(errors.New("gpg failed")).Once()
	fallback.EXPECT().Save(mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()

	store, err := NewStore(primary, fallback)
	require.NoError(t, err)

	err = store.Save(context.Background(), domain.Credential{Token: "tok"})
	require.ErrorContains(t, err, "gpg failed")
	require.ErrorContains(t, err, "disk full")
}

func TestLoadFallsBackAndMapsNotFound(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		primaryErr error
		fallback   domain.Credential
		fallErr    error
		want       domain.Credential
		wantErrIs  error
	}{
		{
			name:       "primary missing, fallback has credential",
			primaryErr: domain.ErrCredentialNotFound,
			fallback:   domain.Credential{Token: "from-file"},
			want:       domain.Credential{Token: "from-file"},
		},
		{
			name:       "pass unavailable, file missing",
			primaryErr: passstore.ErrUnavailable,
			fallErr:    domain.ErrCredentialNotFound,
			wantErrIs:  domain.ErrCredentialNotFound,
		},
		{
			name:       "both missing",
			primaryErr: domain.ErrCredentialNotFound,
			fallErr:    domain.ErrCredentialNotFound,
			wantErrIs:  domain.ErrCredentialNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			primary := mocks.NewMockCredentialStore(t)
			fallback := mocks.NewMockCredentialStore(t)
			primary.EXPECT().Load(mock.Anything).Return(domain.Credential{}, tc.primaryErr).Once()
			fallback.EXPECT().Load(mock.Anything).Return(tc.fallback, tc.fallErr).Once()

			store, err := NewStore(primary, fallback)
			require.NoError(t, err)

			got, err := store.Load(context.Background())
			if tc.wantErrIs != nil {
				require.ErrorIs(t, err, tc.wantErrIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLoadDoesNotFallBackOnCancellation(t *testing.T) {
	t.Parallel()

	primary := mocks.NewMockCredentialStore(t)
	primary.EXPECT().Load(mock.Anything).Return(domain.Credential{}, context.Canceled).Once()

	store, err := NewStore(primary, mocks.NewMockCredentialStore(t))
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestClearClearsBothStores(t *testing.T) {
	t.Parallel()

	primary := mocks.NewMockCredentialStore(t)
	fallback := mocks.NewMockCredentialStore(t)
	primary.EXPECT().Clear(mock.Anything).Return(nil).Once()
	fallback.EXPECT().Clear(mock.Anything).Return(nil).Once()

	store, err := NewStore(primary, fallback)
	require.NoError(t, err)
	require.NoError(t, store.Clear(context.Background()))
}

func TestClearIgnoresUnavailablePrimaryButReportsFallbackFailure(t *testing.T) {
	t.Parallel()

	primary := mocks.NewMockCredentialStore(t)
	fallback := mocks.NewMockCredentialStore(t)
	primary.EXPECT().Clear(mock.Anything).Return(passstore.ErrUnavailable).Once()
	fallback.EXPECT().Clear(mock.Anything).Return(errors.New("read-only file system")).Once()

	store, err := NewStore(primary, fallback)
	require.NoError(t, err)

	err = store.Clear(context.Background())
	require.ErrorContains(t, err, "read-only file system")
	assert.NotErrorIs(t, err, passstore.ErrUnavailable)
}
