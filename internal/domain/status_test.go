package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/toleubekov/kitchen-sync/internal/domain"
)

func TestValidateTransition_Table(t *testing.T) {
	allowed := map[domain.Status][]domain.Status{
		domain.StatusNew:       {domain.StatusPending, domain.StatusCancelled},
		domain.StatusPending:   {domain.StatusConfirmed, domain.StatusCancelled},
		domain.StatusConfirmed: {domain.StatusPreparing, domain.StatusCancelled},
		domain.StatusPreparing: {domain.StatusReady, domain.StatusCancelled},
		domain.StatusReady:     {domain.StatusPickedUp, domain.StatusCancelled},
		domain.StatusPickedUp:  {domain.StatusCompleted},
		domain.StatusCompleted: {},
		domain.StatusCancelled: {},
	}

	all := []domain.Status{
		domain.StatusNew, domain.StatusPending, domain.StatusConfirmed,
		domain.StatusPreparing, domain.StatusReady, domain.StatusPickedUp,
		domain.StatusCompleted, domain.StatusCancelled,
	}

	for from, targets := range allowed {
		ok := make(map[domain.Status]bool)
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range all {
			err := domain.ValidateTransition(from, to)
			if ok[to] {
				require.NoError(t, err, "%s -> %s should be allowed", from, to)
			} else {
				require.ErrorIs(t, err, domain.ErrInvalidTransition, "%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestValidateTransition_SkippingStagesRejected(t *testing.T) {
	err := domain.ValidateTransition(domain.StatusNew, domain.StatusPreparing)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.Contains(t, err.Error(), "new")
	require.Contains(t, err.Error(), "preparing")
}

func TestValidateTransition_UnknownStatus(t *testing.T) {
	err := domain.ValidateTransition("shipped", domain.StatusPending)
	require.ErrorIs(t, err, domain.ErrUnknownStatus)
	require.Contains(t, err.Error(), "shipped")

	err = domain.ValidateTransition(domain.StatusNew, "shipped")
	require.ErrorIs(t, err, domain.ErrUnknownStatus)

	// Unknown never downgrades to a plain invalid-transition rejection.
	require.NotErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestStatus_Terminal(t *testing.T) {
	require.True(t, domain.StatusCompleted.Terminal())
	require.True(t, domain.StatusCancelled.Terminal())
	require.False(t, domain.StatusNew.Terminal())
	require.False(t, domain.StatusPickedUp.Terminal())
	require.False(t, domain.Status("bogus").Terminal())
}

func TestCode_Mapping(t *testing.T) {
	cases := map[error]string{
		domain.ErrInvalidTransition:  "InvalidTransition",
		domain.ErrUnknownStatus:      "UnknownStatus",
		domain.ErrVersionConflict:    "VersionConflict",
		domain.ErrStorageUnavailable: "StorageUnavailable",
		domain.ErrIndeterminate:      "Indeterminate",
		domain.ErrTenantMismatch:     "TenantMismatch",
		domain.ErrUnauthorized:       "Unauthorized",
		domain.ErrOrderNotFound:      "OrderNotFound",
	}
	for err, code := range cases {
		require.Equal(t, code, domain.Code(err))
	}
}
