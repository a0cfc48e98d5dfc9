package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weenotify/internal/config"
)

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
	assert.Equal(t, ".weenotify.yml", filepath.Base(flag.DefValue))

	start, _, err := cmd.Find([]string{"start"})
	require.NoError(t, err)
	assert.Equal(t, "start", start.Name())
}

func TestRunFailsOnMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weenotify.yml")
	require.NoError(t, os.WriteFile(path, []byte("connection: {host: localhost, user: u, pass: p, vhost: /}\n"), 0o600))

	for _, args := range [][]string{{"-c", path}, {"start", "--config", path}} {
		cmd := newRootCmd()
		cmd.SetArgs(args)

		err := cmd.ExecuteContext(context.Background())
		require.Error(t, err)

		var cfgErr *config.Error
		require.True(t, errors.As(err, &cfgErr), "got %v", err)
		assert.Equal(t, "connection.exchange", cfgErr.Key)
	}
}

func TestBuildNotifier(t *testing.T) {
	nt, closers := buildNotifier(config.NotifierConfig{
		Desktop:  config.DesktopConfig{Enabled: true, AppName: "weenotify"},
		Telegram: config.TelegramConfig{Token: "t", ChatIDs: []string{"1"}},
	})
	assert.Len(t, nt, 2)
	assert.Len(t, closers, 1)

	nt, closers = buildNotifier(config.NotifierConfig{})
	assert.Empty(t, nt)
	assert.Empty(t, closers)
}
