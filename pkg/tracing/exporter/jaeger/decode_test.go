package jaeger

import (
	"testing"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/exporter/jaeger/jaegertest"
	"github.com/stretchr/testify/require"
)

func decodePacket(t *testing.T, packet []byte) jaegertest.Batch {
	t.Helper()

	got, err := jaegertest.Decode(packet)
	require.NoError(t, err)
	return got
}
