package commands

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/internal/config"
)

func executeVersion(t *testing.T, version string, args ...string) string {
	t.Helper()
	cmd := NewVersionCommand(version)
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestVersionCommand_Text(t *testing.T) {
	out := executeVersion(t, "0.1.0")

	assert.Equal(t,
		"leapbuild v0.1.0\nconfig format "+config.SupportedVersion+", "+runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH+"\n",
		out)
}

func TestVersionCommand_JSON(t *testing.T) {
	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(executeVersion(t, "dev", "--json")), &info))

	assert.Equal(t, VersionInfo{
		Version:       "dev",
		ConfigVersion: "1.0",
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
	}, info)
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test")

	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Contains(t, cmd.Long, "config format")
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}
