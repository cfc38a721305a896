package client

import (
	"context"
	"strings"
)

// ErrorPrefix marks a summary field whose command failed.
const ErrorPrefix = "Error: "

// Query is one named sub-command of a composite call.
type Query struct {
	Field   string
	Command string
}

// ServerQueries is the ordered server summary.
var ServerQueries = []Query{
	{Field: "playerList", Command: "list"},
	{Field: "tps", Command: "forge tps"},
	{Field: "memory", Command: "forge track start"},
	{Field: "version", Command: "version"},
	{Field: "difficulty", Command: "difficulty"},
	{Field: "gamemode", Command: "defaultgamemode"},
	{Field: "time", Command: "time query daytime"},
	{Field: "weather", Command: "weather query"},
}

// playerFields maps summary keys to entity NBT paths.
var playerFields = []struct {
	field string
	path  string
}{
	{"gamemode", "playerGameType"},
	{"health", "Health"},
	{"food", "foodLevel"},
	{"xp", "XpLevel"},
	{"inventory", "Inventory"},
	{"location", "Pos"},
}

// PlayerQueries returns the ordered player summary for name.
func PlayerQueries(name string) []Query {
	out := make([]Query, 0, len(playerFields))
	for _, f := range playerFields {
		out = append(out, Query{
			Field:   f.field,
			Command: "data get entity " + name + " " + f.path,
		})
	}
	return out
}

// Summary maps query fields to command output or an error placeholder.
type Summary map[string]string

// Failed reports whether field holds an error placeholder.
func (s Summary) Failed(field string) bool {
	v, ok := s[field]
	return ok && strings.HasPrefix(v, ErrorPrefix)
}

// Errors returns the failed fields and their messages.
func (s Summary) Errors() map[string]string {
	out := make(map[string]string)
	for k, v := range s {
		if strings.HasPrefix(v, ErrorPrefix) {
			out[k] = strings.TrimPrefix(v, ErrorPrefix)
		}
	}
	return out
}

// Summarize runs every query in order. A failed query is recorded as
// "Error: <message>" under its own field and does not stop the rest.
func Summarize(ctx context.Context, ex Executor, queries []Query) Summary {
	out := make(Summary, len(queries))
	for _, q := range queries {
		v, err := ex.Execute(ctx, q.Command)
		if err != nil {
			out[q.Field] = ErrorPrefix + err.Error()
			continue
		}
		out[q.Field] = v
	}
	return out
}
