package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antlu/statusbot/internal/config"
	"github.com/antlu/statusbot/internal/meeting"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		Nick:        "StatusBot",
		Server:      "irc.example.org",
		Port:        6667,
		Channel:     "#team",
		Roster:      meeting.NewRoster([]string{"alice", "bob"}),
		ReportsFile: filepath.Join(dir, "reports.csv"),
		DBPath:      filepath.Join(dir, "statusbot.db"),
	}
}

func TestNewWithoutOptionalParts(t *testing.T) {
	a, err := New(testConfig(t))
	require.NoError(t, err)
	defer a.db.Close()

	assert.Nil(t, a.mailer)
	assert.Nil(t, a.digest)
	assert.NotNil(t, a.coordinator)
}

func TestNewWithMailAndDigest(t *testing.T) {
	cfg := testConfig(t)
	cfg.MailFrom = "bot@example.org"
	cfg.MailTo = []string{"team@example.org"}
	cfg.BoardID = "b1"

	a, err := New(cfg)
	require.NoError(t, err)
	defer a.db.Close()

	assert.NotNil(t, a.mailer)
	assert.NotNil(t, a.digest)
}
