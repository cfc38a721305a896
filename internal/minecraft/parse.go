// Package minecraft interprets the text a Minecraft server prints in reply
// to console commands.
package minecraft

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	countRe     = regexp.MustCompile(`There are (\d+)`)
	ofAMaxRe    = regexp.MustCompile(`There are (\d+) of a max(?:imum)? of (\d+) players online:?\s*(.*)`)
	outOfMaxRe  = regexp.MustCompile(`There are (\d+) out of maximum (\d+) players online\.?:?\s*(.*)`)
	onlineTail  = regexp.MustCompile(`online: (.+)$`)
	entityRe    = regexp.MustCompile(`^(\S+) has the following entity data: (.*)$`)
	formatCodes = regexp.MustCompile(`§[0-9a-fk-orA-FK-OR]`)
)

// PlayerList is the parsed reply of the "list" command.
type PlayerList struct {
	Online  int      `json:"online"`
	Max     int      `json:"max"`
	Players []string `json:"players"`
}

// StripFormatting removes section-sign colour and style codes.
func StripFormatting(s string) string {
	return formatCodes.ReplaceAllString(s, "")
}

// ParsePlayerList understands the vanilla, Paper and Forge variants of the
// "list" reply. Max is zero when the server did not report it. Online falls
// back to the number of names when no count is present.
func ParsePlayerList(text string) PlayerList {
	text = strings.TrimSpace(StripFormatting(text))
	pl := PlayerList{Players: []string{}}
	if text == "" {
		return pl
	}

	if m := countRe.FindStringSubmatch(text); m != nil {
		pl.Online, _ = strconv.Atoi(m[1])
	}

	switch m := firstMatch(text, ofAMaxRe, outOfMaxRe); {
	case m != nil:
		pl.Online, _ = strconv.Atoi(m[1])
		pl.Max, _ = strconv.Atoi(m[2])
		pl.Players = splitNames(m[3])

	case onlineTail.MatchString(firstLine(text)):
		pl.Players = splitNames(onlineTail.FindStringSubmatch(firstLine(text))[1])

	case strings.Contains(text, "There are 0"):

	default:
		pl.Players = colonFallback(text)
	}

	// Some servers print the names on the following line.
	if len(pl.Players) == 0 && pl.Online > 0 {
		if lines := strings.Split(text, "\n"); len(lines) > 1 {
			pl.Players = splitNames(strings.Join(lines[1:], ", "))
		}
	}

	if pl.Online == 0 && len(pl.Players) > 0 && !countRe.MatchString(text) {
		pl.Online = len(pl.Players)
	}
	return pl
}

// ParseEntityData extracts the value from a "data get entity" reply.
func ParseEntityData(text string) (string, bool) {
	text = strings.TrimSpace(StripFormatting(text))
	m := entityRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// IsUnknownEntity reports whether the reply says the target does not exist.
func IsUnknownEntity(text string) bool {
	return strings.Contains(text, "No entity was found")
}

// ParseNumber reads an NBT scalar such as "20.0f", "7" or "3b".
func ParseNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	value = strings.TrimRight(value, "fFdDbBsSlL")
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func firstMatch(text string, res ...*regexp.Regexp) []string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); m != nil {
			return m
		}
	}
	return nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func colonFallback(text string) []string {
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, ":") || strings.Contains(line, "There are") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if names := splitNames(parts[1]); len(names) > 0 {
			return names
		}
	}
	return []string{}
}

func splitNames(s string) []string {
	out := []string{}
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
