package labels

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/stretchr/testify/require"
)

// TestValidate tests validation of labels.
func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		label string
		err   error
	}{
		{
			name:  "label ok",
			label: "label",
			err:   nil,
		},
		{
			name:  "exceeds limit",
			label: strings.Repeat(" ", MaxLength+1),
			err:   ErrLabelTooLong,
		},
		{
			name:  "exactly reserved prefix",
			label: Reserved,
			err:   ErrReservedPrefix,
		},
		{
			name:  "starts with reserved prefix",
			label: fmt.Sprintf("%v test", Reserved),
			err:   ErrReservedPrefix,
		},
		{
			name:  "ends with reserved prefix",
			label: fmt.Sprintf("test %v", Reserved),
			err:   nil,
		},
	}

	for _, test := range tests {
		test := test

		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, test.err, Validate(test.label))
		})
	}
}

// TestSubTxLabel tests the labels of swap transactions.
func TestSubTxLabel(t *testing.T) {
	id, err := swapparams.ParseTxID("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	label := SubTxLabel(swapparams.SlotForeignLock, id)
	require.Equal(t, "swapd -- ForeignLock(swap="+id.String()+")", label)
	require.NoError(t, Validate(label))
}
