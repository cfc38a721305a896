// Package cli implements the interactive console: raw lines go to the
// server as commands, dot-commands run craftcon helpers.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/actions"
	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/events"
	"github.com/energizer-project/craftcon/internal/minecraft"
)

// errQuit ends the read loop.
var errQuit = errors.New("quit")

// Console keeps one session open for a single interactive user and
// reopens it after a transport failure.
type Console struct {
	open     client.OpenFunc
	eventBus *events.EventBus
	in       io.Reader
	out      io.Writer
	prompt   string
	logger   zerolog.Logger

	session client.Session
}

// NewConsole creates a console. eventBus may be nil.
func NewConsole(open client.OpenFunc, eventBus *events.EventBus, in io.Reader, out io.Writer) *Console {
	return &Console{
		open:     open,
		eventBus: eventBus,
		in:       in,
		out:      out,
		prompt:   "craftcon> ",
		logger:   log.With().Str("component", "console").Logger(),
	}
}

// Run reads lines until EOF, .quit, or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	defer c.drop()

	if _, err := c.current(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Connected. Type .help for console commands, anything else is sent to the server.")

	scanner := bufio.NewScanner(c.in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := c.Handle(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

// Handle processes one input line.
func (c *Console) Handle(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, ".") {
		return c.send(ctx, line)
	}

	parts := strings.Fields(line)
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case ".help", ".h", ".?":
		c.printHelp()
	case ".status", ".s":
		return c.cmdStatus(ctx)
	case ".players":
		return c.cmdPlayers(ctx)
	case ".player":
		if len(args) != 1 {
			return fmt.Errorf("usage: .player <name>")
		}
		return c.cmdPlayer(ctx, args[0])
	case ".action":
		if len(args) < 2 {
			return fmt.Errorf("usage: .action <plugin> <action> [params]")
		}
		return c.cmdAction(ctx, args[0], args[1], strings.Join(args[2:], " "))
	case ".actions":
		c.printActions()
	case ".reconnect":
		c.drop()
		if _, err := c.current(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Reconnected.")
	case ".quit", ".exit", ".q":
		return errQuit
	default:
		return fmt.Errorf("unknown console command %q, type .help", cmd)
	}
	return nil
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "\n  <command>                         Send a raw command to the server")
	fmt.Fprintln(c.out, "  .status                           Server summary")
	fmt.Fprintln(c.out, "  .players                          Online players")
	fmt.Fprintln(c.out, "  .player <name>                    Player summary")
	fmt.Fprintln(c.out, "  .action <plugin> <action> [args]  Run a plugin action")
	fmt.Fprintln(c.out, "  .actions                          List plugin actions")
	fmt.Fprintln(c.out, "  .reconnect                        Open a fresh connection")
	fmt.Fprintln(c.out, "  .quit                             Leave the console")
	fmt.Fprintln(c.out)
}

// current returns the open session, connecting if needed.
func (c *Console) current(ctx context.Context) (client.Session, error) {
	if c.session != nil {
		return c.session, nil
	}
	s, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	c.session = s
	return s, nil
}

func (c *Console) drop() {
	if c.session != nil {
		c.session.Disconnect()
		c.session = nil
	}
}

// checkTransport drops the session when err left the connection unusable.
func (c *Console) checkTransport(err error) {
	switch client.ErrorKind(err) {
	case "dial", "auth", "timeout", "malformed", "closed":
		c.logger.Debug().Err(err).Msg("dropping console connection")
		c.drop()
	}
}

func (c *Console) send(ctx context.Context, command string) error {
	s, err := c.current(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := s.Execute(ctx, command)
	c.publish(ctx, command, out, err, time.Since(start))
	if err != nil {
		c.checkTransport(err)
		return err
	}
	c.print(out)
	return nil
}

func (c *Console) cmdStatus(ctx context.Context) error {
	s, err := c.current(ctx)
	if err != nil {
		return err
	}
	summary := s.ServerSummary(ctx)
	RenderSummary(c.out, client.ServerQueries, summary)

	players := minecraft.ParsePlayerList(summary["playerList"])
	if !summary.Failed("playerList") {
		fmt.Fprintf(c.out, "%d/%d players online\n", players.Online, players.Max)
	}
	return nil
}

func (c *Console) cmdPlayers(ctx context.Context) error {
	s, err := c.current(ctx)
	if err != nil {
		return err
	}
	raw, err := s.Execute(ctx, "list")
	if err != nil {
		c.checkTransport(err)
		return err
	}

	pl := minecraft.ParsePlayerList(raw)
	rows := make([][]string, 0, len(pl.Players))
	for _, name := range pl.Players {
		rows = append(rows, []string{name})
	}
	RenderTable(c.out, []string{fmt.Sprintf("Players (%d/%d)", pl.Online, pl.Max)}, rows)
	return nil
}

func (c *Console) cmdPlayer(ctx context.Context, name string) error {
	s, err := c.current(ctx)
	if err != nil {
		return err
	}
	summary, err := s.PlayerSummary(ctx, name)
	if err != nil {
		return err
	}
	RenderSummary(c.out, client.PlayerQueries(name), summary)
	return nil
}

func (c *Console) cmdAction(ctx context.Context, plugin, action, params string) error {
	command, err := actions.ResolveNamed(plugin, action, params)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "> %s\n", command)
	return c.send(ctx, command)
}

func (c *Console) printActions() {
	list := actions.List()
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		rows = append(rows, []string{string(t.Domain), string(t.Action), t.Format, t.Description})
	}
	RenderTable(c.out, []string{"Plugin", "Action", "Command", "Description"}, rows)
}

func (c *Console) print(out string) {
	out = strings.TrimRight(minecraft.StripFormatting(out), "\n")
	if out == "" {
		fmt.Fprintln(c.out, "(no output)")
		return
	}
	fmt.Fprintln(c.out, out)
}

func (c *Console) publish(ctx context.Context, command, out string, err error, d time.Duration) {
	if c.eventBus == nil {
		return
	}
	payload := events.CommandExecutedPayload{
		Command:  command,
		Origin:   "console",
		Output:   out,
		Duration: d,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	c.eventBus.Emit(ctx, events.Event{
		Type:    events.EventCommandExecuted,
		Source:  "console",
		Payload: payload,
	})
}
