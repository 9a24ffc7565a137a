package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jenkinstray/jenkinstray/internal/app"
	"github.com/jenkinstray/jenkinstray/internal/bus"
	"github.com/jenkinstray/jenkinstray/internal/connectors"
	"github.com/jenkinstray/jenkinstray/internal/dataflow"
	"github.com/jenkinstray/jenkinstray/internal/history"
	"github.com/jenkinstray/jenkinstray/internal/jobresult"
	"github.com/jenkinstray/jenkinstray/internal/transport"
	"github.com/jenkinstray/jenkinstray/internal/wsclient"
)

var (
	listenURI        string
	listenMaxRetries int
	listenFor        time.Duration
	listenRaw        bool
)

var errConnectionFailed = errors.New("connection failed")

func init() {
	ListenCmd.Example = `  jtctl listen
  jtctl listen --uri=ws://jenkins.local:8081/notify --max-retries=3
  jtctl listen --listen-for=30s --raw
`
	ListenCmd.Flags().StringVar(&listenURI, "uri", "", "Relay URI. Defaults to TargetUri from the configuration.")
	ListenCmd.Flags().IntVar(&listenMaxRetries, "max-retries", 0, "Retry budget. Defaults to MaxRetries from the configuration.")
	ListenCmd.Flags().DurationVar(&listenFor, "listen-for", 0, "Stop after this long. Zero listens until interrupted.")
	ListenCmd.Flags().BoolVar(&listenRaw, "raw", false, "Also print every received frame.")

	RootCmd.AddCommand(ListenCmd)
}

var ListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect to the Jenkins relay and print job results",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newLogManager()
		if err != nil {
			return err
		}
		defer func() { _ = mgr.Close() }()

		store, err := loadConfig(mgr.Logger("config"))
		if err != nil {
			mgr.Logger("cli").Warn("using default configuration", "error", err)
		}
		cfg := store.Current()
		ep := app.EndpointFromConfig(cfg)
		if strings.TrimSpace(listenURI) != "" {
			ep.URI = strings.TrimSpace(listenURI)
		}
		if listenMaxRetries > 0 {
			ep.MaxRetries = listenMaxRetries
		}

		ctx := cmd.Context()
		if listenFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, listenFor)
			defer cancel()
		}

		b := bus.New(mgr.Logger("bus"))
		defer b.Close()
		tr := transport.NewWebSocketTransport(transport.DefaultWebSocketOptions())
		client := wsclient.New(tr,
			wsclient.WithBackoff(app.BackoffFromConfig(cfg.Connection)),
			wsclient.WithLogger(mgr.Logger("wsclient")),
			wsclient.WithBus(b),
		)
		defer func() { _ = client.Close() }()

		entries := history.NewCollection(cfg.Notify.DisplayHistoryCount)
		dispatcher := dataflow.New(client, mgr.Logger("dataflow"))
		if err := dispatcher.RegisterExecuteTask(jobresult.NewExecuter(entries, b, mgr.Logger("jobresult"))); err != nil {
			return err
		}
		if listenRaw {
			if err := dispatcher.RegisterExecuteTask(jobresult.NewRawFrameExecuter(b)); err != nil {
				return err
			}
		}
		failed := make(chan error, 1)
		if err := dispatcher.RegisterConnectionFailedTask(dataflow.TaskFunc(func(cause error) {
			select {
			case failed <- cause:
			default:
			}
		})); err != nil {
			return err
		}
		dispatcher.ConfigureRegistration()

		printed := watchBus(ctx, b, cmd.OutOrStdout())
		if err := client.Connect(ctx, ep); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
		case cause := <-failed:
			return fmt.Errorf("%w: %s: %v", errConnectionFailed, ep.URI, cause)
		}
		_ = client.Disconnect()
		<-client.Done()
		<-printed
		fmt.Fprintf(cmd.OutOrStdout(), "received %d job results\n", entries.Len())

		return nil
	},
}

// watchBus prints bus events until ctx is done. The returned channel closes when it stops.
func watchBus(ctx context.Context, b bus.MessageBus, out io.Writer) <-chan struct{} {
	jobSub := b.Subscribe(connectors.TopicJobResult)
	connSub := b.Subscribe(connectors.TopicConnStatus)
	rawSub := b.Subscribe(connectors.TopicRawFrameIn)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		defer b.Unsubscribe(jobSub, connectors.TopicJobResult)
		defer b.Unsubscribe(connSub, connectors.TopicConnStatus)
		defer b.Unsubscribe(rawSub, connectors.TopicRawFrameIn)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-jobSub:
				if !ok {
					return
				}
				if e, ok := raw.(history.Entry); ok {
					fmt.Fprintf(out, "%s %s %s\n", e.ReceivedAt.Format(time.TimeOnly), e.Title(), e.Summary())
				}
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				if status, ok := raw.(connectors.ConnectionStatus); ok {
					fmt.Fprintln(out, app.ConnectionStatusLabel(status))
				}
			case raw, ok := <-rawSub:
				if !ok {
					return
				}
				if frame, ok := raw.(connectors.RawFrame); ok {
					fmt.Fprintf(out, "frame %s len=%d %q\n", frame.Kind, frame.Len, frame.Preview)
				}
			}
		}
	}()

	return stopped
}
