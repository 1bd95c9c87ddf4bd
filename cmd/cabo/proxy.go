package main

import (
	"os"
	"time"

	"cabo/internal/devproxy"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func proxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Forward a fixed dev port to the first local port that answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			host, _ := cmd.Flags().GetString("host")
			ports, _ := cmd.Flags().GetIntSlice("ports")
			probe, _ := cmd.Flags().GetString("probe")
			deadline, _ := cmd.Flags().GetDuration("deadline")

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
			p := devproxy.New(devproxy.Options{
				Listen:    listen,
				Host:      host,
				Ports:     ports,
				ProbePath: probe,
				Deadline:  deadline,
			}, &logger)
			return p.Run(cmd.Context())
		},
	}
	cmd.Flags().String("listen", ":5000", "address to listen on")
	cmd.Flags().String("host", "127.0.0.1", "upstream host")
	cmd.Flags().IntSlice("ports", []int{8080, 3000, 5173}, "candidate upstream ports, in order")
	cmd.Flags().String("probe", "/healthz", "path requested to detect a live upstream")
	cmd.Flags().Duration("deadline", time.Minute, "give up detecting after this long")
	return cmd
}
