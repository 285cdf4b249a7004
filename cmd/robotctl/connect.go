package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/robolink/internal/auth"
	"github.com/danmuck/robolink/internal/config"
	logs "github.com/danmuck/robolink/internal/logging"
	"github.com/danmuck/robolink/internal/observability"
	"github.com/danmuck/robolink/internal/protocol/codec"
	"github.com/danmuck/robolink/internal/protocol/schema"
	"github.com/danmuck/robolink/internal/protocol/session"
)

type connectOptions struct {
	username   string
	password   string
	token      string
	schemaFile string
}

func connectCmd(cfg *config.ClientConfig) *cobra.Command {
	var opts connectOptions
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log in, open the websocket and relay stdin lines as requests",
		Long: `Log in, open the websocket and relay stdin lines as requests.

Each input line is "<protocol> key=value ...", typed by the protocol's
request fields. Other text is sent as chat. Type /help for more.

With --token and --schema the login call is skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.username, opts.password = resolveCredentials(cfg, opts.username, opts.password)
			return runConnect(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), *cfg, opts)
		},
	}
	credentialFlags(cmd, &opts.username, &opts.password)
	cmd.Flags().StringVar(&opts.token, "token", "", "Reuse an existing session token")
	cmd.Flags().StringVar(&opts.schemaFile, "schema", "", "Schema text file to use with --token")
	return cmd
}

// session obtains the token and installs the schema for one connect run.
func (o connectOptions) session(ctx context.Context, cfg config.ClientConfig, holder *schema.Holder) (string, error) {
	if o.token != "" {
		if o.schemaFile == "" {
			return "", fmt.Errorf("--token requires --schema")
		}
		text, err := os.ReadFile(o.schemaFile)
		if err != nil {
			return "", err
		}
		reg, err := schema.Parse(string(text))
		if err != nil {
			return "", err
		}
		holder.Install(reg)
		return o.token, nil
	}
	sess, err := auth.NewClient(cfg.AuthURL, nil).Login(ctx, o.username, o.password)
	if err != nil {
		return "", err
	}
	if _, err := holder.LoadAndInstall(sess.SchemaDesc); err != nil {
		return "", fmt.Errorf("login schema: %w", err)
	}
	return sess.Token, nil
}

func runConnect(parent context.Context, in io.Reader, out io.Writer, cfg config.ClientConfig, opts connectOptions) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	holder := schema.NewHolder()
	defer holder.Reset()
	token, err := opts.session(ctx, cfg, holder)
	if err != nil {
		return err
	}
	reg, err := holder.Current()
	if err != nil {
		return err
	}
	endpoint, err := auth.Endpoint(cfg.WSURL, token)
	if err != nil {
		return err
	}

	sink := newTerminalSink(out, func(string) { cancel() })
	mgr := session.NewManager(cfg.SessionConfig(), nil, holder, nil, sink,
		session.WithObserver(observability.NewSessionMetrics()))
	if err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	if cfg.StatusAddr != "" {
		status := observability.NewStatusServer("robotctl", mgr, cfg.CORSOrigins)
		go func() {
			if err := status.ListenAndServe(cfg.StatusAddr); err != nil {
				logs.Warnf("robotctl status server addr=%s err=%v", cfg.StatusAddr, err)
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = status.Shutdown(shutdownCtx)
		}()
	}

	if err := mgr.Connect(session.ConnectionInfo{Token: token, Endpoint: endpoint}); err != nil {
		return err
	}
	return relayInput(ctx, in, sink, mgr, reg)
}

// sender is the part of the manager the input loop drives.
type sender interface {
	Send(name string, fields codec.Fields) error
	SendRaw(protocolID uint32, payload []byte) error
	Disconnect() error
}

func relayInput(ctx context.Context, in io.Reader, sink *terminalSink, mgr sender, reg *schema.Registry) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return mgr.Disconnect()
			}
			c, err := parseCommand(line, reg)
			if err != nil {
				sink.OnMessage("error", err.Error())
				continue
			}
			switch c.kind {
			case cmdQuit:
				return mgr.Disconnect()
			case cmdHelp:
				sink.printf("%s", helpText)
			case cmdSend:
				err = mgr.Send(c.name, c.fields)
			case cmdRaw:
				err = mgr.SendRaw(c.protocolID, c.payload)
			}
			if err != nil {
				sink.OnMessage("error", err.Error())
			}
		}
	}
}
