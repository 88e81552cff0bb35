package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_Stdout(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	tp, err := InitTracer(ctx, ExporterStdout, "", &buf)
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(ctx, "leapbuild.run")
	span.End()
	require.NoError(t, tp.Shutdown(ctx))

	assert.Contains(t, buf.String(), `"Name": "leapbuild.run"`)
	assert.Contains(t, buf.String(), ServiceName)
}

func TestInitMeter_Stdout(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	mp, err := InitMeter(ctx, ExporterStdout, "", &buf)
	require.NoError(t, err)

	counter, err := mp.Meter("test").Int64Counter("leapbuild.projections")
	require.NoError(t, err)
	counter.Add(ctx, 2)
	require.NoError(t, mp.Shutdown(ctx))

	assert.Contains(t, buf.String(), "leapbuild.projections")
}

func TestHostPort(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		https    bool
	}{
		{endpoint: "http://collector:4318", want: "collector:4318"},
		{endpoint: "https://collector:4318", want: "collector:4318", https: true},
		{endpoint: "collector:4318", want: "collector:4318"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, hostPort(tt.endpoint))
			assert.Equal(t, tt.https, isHTTPS(tt.endpoint))
		})
	}
}
