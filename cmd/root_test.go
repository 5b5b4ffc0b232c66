package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "migrate", "bounds", "similar", "token"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "propmap", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	flag = serveCmd.Flags().Lookup("migrate")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestBoundsCommand_Flags(t *testing.T) {
	for _, name := range []string{"sw", "ne", "min-price", "max-price", "bedrooms", "type", "output", "saved-filters"} {
		assert.NotNil(t, boundsCmd.Flags().Lookup(name), "bounds should have --%s flag", name)
	}
	assert.Equal(t, "table", boundsCmd.Flags().Lookup("output").DefValue)
}

func TestSimilarCommand_Args(t *testing.T) {
	assert.Error(t, similarCmd.Args(similarCmd, nil))
	assert.NoError(t, similarCmd.Args(similarCmd, []string{"L-1"}))
}
