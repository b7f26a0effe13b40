package irc

import (
	"sort"
	"strings"
)

// line is a raw IRC line reduced to what the client reads from it.
type line struct {
	nick    string
	command string
	params  []string
}

// parseLine splits "@tags :nick!ident@host COMMAND a b :trailing".
func parseLine(raw string) line {
	raw = strings.TrimRight(raw, "\r\n")
	if strings.HasPrefix(raw, "@") {
		i := strings.IndexByte(raw, ' ')
		if i < 0 {
			return line{}
		}
		raw = strings.TrimLeft(raw[i+1:], " ")
	}

	var l line
	if strings.HasPrefix(raw, ":") {
		source, rest, _ := strings.Cut(raw[1:], " ")
		if i := strings.IndexAny(source, "!@"); i >= 0 {
			source = source[:i]
		}
		l.nick = source
		raw = strings.TrimLeft(rest, " ")
	}

	var fields []string
	for raw != "" {
		if strings.HasPrefix(raw, ":") {
			fields = append(fields, raw[1:])
			break
		}
		field, rest, _ := strings.Cut(raw, " ")
		fields = append(fields, field)
		raw = strings.TrimLeft(rest, " ")
	}
	if len(fields) > 0 {
		l.command = strings.ToUpper(fields[0])
		l.params = fields[1:]
	}
	return l
}

// stripModes drops channel mode prefixes such as "@" and "+" from a NAMES
// entry.
func stripModes(name string) string {
	return strings.TrimLeft(name, "~&@%+")
}

func (c *Client) addMember(name string) {
	nick := stripModes(name)
	if nick == "" {
		return
	}
	c.mu.Lock()
	c.members[strings.ToLower(nick)] = nick
	c.mu.Unlock()
}

func (c *Client) removeMember(nick string) {
	c.mu.Lock()
	delete(c.members, strings.ToLower(nick))
	c.mu.Unlock()
}

// resetMembers empties the member list, keeping only the given nicks.
func (c *Client) resetMembers(nicks ...string) {
	c.mu.Lock()
	c.members = make(map[string]string, len(nicks))
	for _, nick := range nicks {
		c.members[strings.ToLower(nick)] = nick
	}
	c.mu.Unlock()
}

// Userlist returns the nicks currently in the channel, sorted, without mode
// prefixes.
func (c *Client) Userlist() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil, ErrNotConnected
	}
	nicks := make([]string, 0, len(c.members))
	for _, nick := range c.members {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	return nicks, nil
}
