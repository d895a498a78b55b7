package types_test

import (
	"testing"

	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/m-mizutani/gt"
)

func TestParseMode(t *testing.T) {
	for _, m := range types.AllModes() {
		parsed, err := types.ParseMode(m.String())
		gt.NoError(t, err)
		gt.Value(t, parsed).Equal(m)
	}

	_, err := types.ParseMode("reckless")
	gt.Error(t, err)
}

func TestRetryStateTerminal(t *testing.T) {
	gt.Bool(t, types.RetryStateSucceeded.IsTerminal()).True()
	gt.Bool(t, types.RetryStateFailed.IsTerminal()).True()
	gt.Bool(t, types.RetryStateRetrying.IsTerminal()).False()
	gt.Bool(t, types.RetryStateWaiting.IsTerminal()).False()
}

func TestStoreBackend(t *testing.T) {
	gt.Bool(t, types.StoreSQLite.IsValid()).True()
	gt.Bool(t, types.StoreBackend("mongo").IsValid()).False()
	gt.String(t, types.OutcomeThrottled.String()).Equal("throttled")
}
