package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"scrape", "analyze", "ask", "show", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "classifieds-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestScrapeCommand_Flags(t *testing.T) {
	flag := scrapeCmd.Flags().Lookup("output")
	require.NotNil(t, flag, "scrape command should have --output flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestShowCommand_Flags(t *testing.T) {
	flag := showCmd.Flags().Lookup("kind")
	require.NotNil(t, flag, "show command should have --kind flag")
	assert.Equal(t, kindAd, flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestCommandArgs(t *testing.T) {
	assert.Error(t, scrapeCmd.Args(scrapeCmd, nil))
	assert.NoError(t, scrapeCmd.Args(scrapeCmd, []string{testListingURL}))
	assert.Error(t, askCmd.Args(askCmd, []string{testAdID}))
	assert.NoError(t, askCmd.Args(askCmd, []string{testAdID, "Ist", "der", "Akku", "dabei?"}))
}

func TestPrintJSON_KeepsUmlautsAndMarkup(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]string{"title": "Größe <XL> & mehr"}))
	assert.Equal(t, "{\n  \"title\": \"Größe <XL> & mehr\"\n}\n", buf.String())
}
