package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antlu/statusbot/internal/crypto"
	"github.com/antlu/statusbot/internal/meeting"
	"github.com/antlu/statusbot/internal/store"
)

func executeCLI(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()

	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), err
}

func setBotEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "statusbot.db")
	t.Setenv("SB_CHANNEL", "#team")
	t.Setenv("SB_ROSTER", "alice,bob")
	t.Setenv("SB_DB_PATH", dbPath)
	t.Setenv("SB_TIMEZONE", "UTC")
	t.Setenv("SB_SECRET_KEY", "")
	return dbPath
}

func TestEncryptNewKey(t *testing.T) {
	out, err := executeCLI(t, newRootCmd(), "encrypt", "--new-key")
	require.NoError(t, err)

	key := strings.TrimSpace(out)
	_, err = crypto.NewCipher(key)
	assert.NoError(t, err)
}

func TestEncryptRoundTrip(t *testing.T) {
	key := crypto.GenerateKey()
	t.Setenv("SB_SECRET_KEY", key)

	out, err := executeCLI(t, newRootCmd(), "encrypt", "hunter2")
	require.NoError(t, err)

	c, err := crypto.NewCipher(key)
	require.NoError(t, err)
	plain, err := c.Decrypt(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)
}

func TestEncryptRequiresKey(t *testing.T) {
	t.Setenv("SB_SECRET_KEY", "")

	_, err := executeCLI(t, newRootCmd(), "encrypt", "hunter2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SB_SECRET_KEY")
}

func TestMinutes(t *testing.T) {
	dbPath := setBotEnv(t)

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	opened := time.Date(2026, time.October, 12, 15, 0, 0, 0, time.UTC)
	_, err = db.SaveMinutes(context.Background(), meeting.Minutes{
		Channel:  "#team",
		OpenedAt: opened,
		ClosedAt: opened.Add(time.Hour),
		Reports:  []meeting.Report{{Nick: "alice", Text: "status: done", At: opened.Add(time.Minute)}},
		Missing:  []string{"bob"},
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := executeCLI(t, newRootCmd(), "minutes", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 #team, 2026-10-12 15:00:00 to 2026-10-12 16:00:00")
	assert.Contains(t, out, "  * alice status: done\n")
	assert.Contains(t, out, "Missing updates from: bob")
}

func TestMinutesEmptyArchive(t *testing.T) {
	setBotEnv(t)

	out, err := executeCLI(t, newRootCmd(), "minutes")
	require.NoError(t, err)
	assert.Equal(t, "No minutes archived yet.\n", out)
}

func TestNext(t *testing.T) {
	setBotEnv(t)
	t.Setenv("SB_MEETING_DAYS", "mon,wed")

	root := &cobra.Command{Use: "statusbot"}
	// Thursday 15 October 2026, after the window.
	root.AddCommand(newNextCmd(func() time.Time { return time.Date(2026, time.October, 15, 17, 0, 0, 0, time.UTC) }))

	out, err := executeCLI(t, root, "next")
	require.NoError(t, err)
	assert.Equal(t,
		"opens:   Mon Oct 19 15:00 UTC\n"+
			"reminds: Mon Oct 19 15:30 UTC\n"+
			"closes:  Mon Oct 19 16:00 UTC\n",
		out)
}

func TestRequiresConfig(t *testing.T) {
	t.Setenv("SB_CHANNEL", "")

	_, err := executeCLI(t, newRootCmd(), "next")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SB_CHANNEL")
}
