package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{StatusCreated, StatusPaid, StatusShipped, StatusCompleted, StatusCancelled}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("  Paid ")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	for _, raw := range []string{"", "paid", "PAID", "Refunded", "Cancel"} {
		_, err := ParseStatus(raw)
		assert.ErrorIs(t, err, ErrUnknownStatus, raw)
	}
}

func TestAdminTransitionTable(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusCreated, StatusPaid}:      true,
		{StatusCreated, StatusCancelled}: true,
		{StatusPaid, StatusShipped}:      true,
		{StatusPaid, StatusCancelled}:    true,
		{StatusShipped, StatusCompleted}: true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			err := CheckAdminTransition(from, to)
			switch {
			case from.IsTerminal():
				assert.ErrorIs(t, err, ErrOrderFinal, "%s -> %s", from, to)
			case from == to:
				assert.ErrorIs(t, err, ErrNoOpStatus, "%s -> %s", from, to)
			case allowed[[2]Status{from, to}]:
				assert.NoError(t, err, "%s -> %s", from, to)
			default:
				assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestTerminalStatusesHaveNoSuccessors(t *testing.T) {
	for _, s := range allStatuses {
		assert.Equal(t, s.IsTerminal(), len(s.Next()) == 0, s)
	}
}

func TestCustomerCancelRules(t *testing.T) {
	cases := []struct {
		status  Status
		already bool
		err     error
	}{
		{StatusCreated, false, nil},
		{StatusPaid, false, nil},
		{StatusCancelled, true, nil},
		{StatusShipped, false, ErrOrderFinal},
		{StatusCompleted, false, ErrOrderFinal},
	}
	for _, tc := range cases {
		already, err := CheckCustomerCancel(tc.status)
		assert.Equal(t, tc.already, already, tc.status)
		if tc.err == nil {
			assert.NoError(t, err, tc.status)
		} else {
			assert.ErrorIs(t, err, tc.err, tc.status)
		}
	}
}
