package payments

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithContextReturnsResult(t *testing.T) {
	body, err := callWithContext(context.Background(), func() (map[string]interface{}, error) {
		return map[string]interface{}{"id": "trf_1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "trf_1", body["id"])
}

func TestCallWithContextEnforcesDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := callWithContext(ctx, func() (map[string]interface{}, error) {
		<-release
		return map[string]interface{}{"id": "trf_1"}, nil
	})
	assert.ErrorIs(t, err, ErrOutcomeUnknown,
		"an abandoned call may have landed, so the outcome must read as unknown")
}
