package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DisabledReturnsNoopMeter(t *testing.T) {
	tel, shutdown, err := New(Config{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, tel.MeterProvider)
	require.NotNil(t, tel.Meter)
	require.NoError(t, shutdown(context.Background()))
}
