package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/antlu/statusbot/internal/crypto"
	"github.com/antlu/statusbot/internal/meeting"
)

type Config struct {
	// IRC
	Nick       string
	Server     string
	Port       int
	TLS        bool
	Password   string
	Channel    string
	Network    string
	RetryDelay time.Duration

	// Meeting
	Team        string
	Roster      meeting.Roster
	Schedule    meeting.Schedule
	ReportsFile string
	DBPath      string

	// Mail, enabled when MailTo is set
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string
	MailTo   []string

	// Board digest, enabled when BoardID is set
	BoardID          string
	BoardKey         string
	BoardToken       string
	BoardURL         string
	BoardMembers     map[string]string
	BoardPoll        time.Duration
	BoardReport      time.Duration
	PresenceInterval time.Duration
}

func (c *Config) MailEnabled() bool {
	return len(c.MailTo) > 0
}

func (c *Config) DigestEnabled() bool {
	return c.BoardID != ""
}

// Load reads an optional .env file and the SB_* environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the SB_* environment without touching .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Nick:        getEnvDefault("SB_NICK", "StatusBot"),
		Server:      getEnvDefault("SB_SERVER", "irc.libera.chat"),
		Password:    os.Getenv("SB_PASS"),
		Channel:     os.Getenv("SB_CHANNEL"),
		Network:     getEnvDefault("SB_NETWORK", "Libera.Chat"),
		ReportsFile: getEnvDefault("SB_REPORTS_FILE", "statusbot_reports.csv"),
		DBPath:      getEnvDefault("SB_DB_PATH", "statusbot.db"),
		SMTPHost:    getEnvDefault("SB_SMTP_HOST", "smtp.gmail.com"),
		SMTPUser:    os.Getenv("SB_SMTP_USER"),
		SMTPPass:    os.Getenv("SB_SMTP_PASS"),
		MailFrom:    os.Getenv("SB_MAIL_FROM"),
		MailTo:      splitList(os.Getenv("SB_MAIL_TO")),
		BoardID:     os.Getenv("SB_BOARD_ID"),
		BoardKey:    os.Getenv("SB_BOARD_KEY"),
		BoardToken:  os.Getenv("SB_BOARD_TOKEN"),
		BoardURL:    os.Getenv("SB_BOARD_URL"),
	}

	if cfg.Channel == "" {
		return nil, fmt.Errorf("SB_CHANNEL is required")
	}
	if !strings.HasPrefix(cfg.Channel, "#") {
		cfg.Channel = "#" + cfg.Channel
	}
	cfg.Team = getEnvDefault("SB_TEAM", strings.TrimPrefix(cfg.Channel, "#"))

	cfg.Roster = meeting.NewRoster(splitList(os.Getenv("SB_ROSTER")))
	if len(cfg.Roster) == 0 {
		return nil, fmt.Errorf("SB_ROSTER is required")
	}

	var err error
	if cfg.Port, err = getEnvInt("SB_PORT", 6667); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getEnvInt("SB_SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.TLS, err = getEnvBool("SB_TLS", false); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getEnvDuration("SB_RETRY_DELAY", 600*time.Second); err != nil {
		return nil, err
	}
	if cfg.BoardPoll, err = getEnvDuration("SB_BOARD_POLL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.BoardReport, err = getEnvDuration("SB_BOARD_REPORT", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PresenceInterval, err = getEnvDuration("SB_PRESENCE_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.Schedule, err = loadSchedule(); err != nil {
		return nil, err
	}

	if cfg.BoardMembers, err = parseMembers(os.Getenv("SB_BOARD_MEMBERS")); err != nil {
		return nil, err
	}

	if cfg.MailEnabled() && cfg.MailFrom == "" {
		return nil, fmt.Errorf("SB_MAIL_FROM is required when SB_MAIL_TO is set")
	}
	if cfg.DigestEnabled() {
		for _, v := range []struct{ key, val string }{{"SB_BOARD_KEY", cfg.BoardKey}, {"SB_BOARD_TOKEN", cfg.BoardToken}} {
			if v.val == "" {
				return nil, fmt.Errorf("%s is required when SB_BOARD_ID is set", v.key)
			}
		}
	}

	if err := cfg.decryptSecrets(os.Getenv("SB_SECRET_KEY")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadSchedule() (meeting.Schedule, error) {
	var s meeting.Schedule

	loc, err := time.LoadLocation(getEnvDefault("SB_TIMEZONE", "UTC"))
	if err != nil {
		return s, fmt.Errorf("error parsing SB_TIMEZONE: %w", err)
	}
	s.Location = loc

	anchors := []struct {
		key, def string
		dst      *meeting.Anchor
	}{
		{"SB_MEETING_OPEN", "15:00", &s.Open},
		{"SB_MEETING_REMIND", "15:30", &s.Remind},
		{"SB_MEETING_CLOSE", "16:00", &s.Close},
	}
	for _, a := range anchors {
		if *a.dst, err = meeting.ParseAnchor(getEnvDefault(a.key, a.def)); err != nil {
			return s, fmt.Errorf("error parsing %s: %w", a.key, err)
		}
	}

	if s.Days, err = meeting.ParseWeekdays(os.Getenv("SB_MEETING_DAYS")); err != nil {
		return s, fmt.Errorf("error parsing SB_MEETING_DAYS: %w", err)
	}
	return s, nil
}

func (c *Config) decryptSecrets(key string) error {
	if key == "" {
		return nil
	}
	cipher, err := crypto.NewCipher(key)
	if err != nil {
		return fmt.Errorf("error reading SB_SECRET_KEY: %w", err)
	}

	secrets := []struct {
		name string
		dst  *string
	}{
		{"SB_SMTP_PASS", &c.SMTPPass},
		{"SB_BOARD_TOKEN", &c.BoardToken},
	}
	for _, s := range secrets {
		if *s.dst == "" {
			continue
		}
		if *s.dst, err = cipher.Decrypt(*s.dst); err != nil {
			return fmt.Errorf("error decrypting %s: %w", s.name, err)
		}
	}
	return nil
}

// parseMembers reads "boarduser:nick" pairs. Board usernames are lowercased.
func parseMembers(s string) (map[string]string, error) {
	members := make(map[string]string)
	for _, pair := range splitList(s) {
		user, nick, ok := strings.Cut(pair, ":")
		user, nick = strings.TrimSpace(user), strings.TrimSpace(nick)
		if !ok || user == "" || nick == "" {
			return nil, fmt.Errorf("invalid SB_BOARD_MEMBERS entry %q, want boarduser:nick", pair)
		}
		members[strings.ToLower(user)] = nick
	}
	return members, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("error parsing %s: %w", key, err)
	}
	return b, nil
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("600").
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %w", key, err)
	}
	return d, nil
}
