package main

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/config"
	"github.com/vango-dev/reactor/internal/demo"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/inspect"
)

// traceUploader stores a recorded trace under a name and returns its key.
type traceUploader interface {
	Upload(ctx context.Context, name string, rec *inspect.Recorder) (string, error)
}

type recordOptions struct {
	out      string
	bucket   string
	duration time.Duration
	verbose  bool
}

func recordCmd(flags *globalFlags) *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record [scenario...]",
		Short: "Run scenarios and save the engine event trace",
		Long: `Run scenarios with every engine event recorded, then write the
trace as JSON to a file, to S3, or to stdout.

Long-running scenarios are stopped after --duration.

Examples:
  reactor record counter --out trace.json
  reactor record --bucket=my-traces
  reactor record ticker --duration=3s --out ticker.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := flags.setup()
			if err != nil {
				return err
			}
			if opts.bucket != "" {
				cfg.Record.Bucket = opts.bucket
			}
			if len(args) == 0 {
				args = demo.Names()
			}

			out := io.Discard
			if opts.verbose {
				out = os.Stdout
			}
			rec := inspect.NewRecorder(cfg.Record.Buffer)
			env, err := newDemoEnv(cfg, logger, out, rec)
			if err != nil {
				return err
			}

			var up traceUploader
			if cfg.Record.Bucket != "" {
				client := inspect.NewS3Client(cfg.Record.Region, cfg.Record.Endpoint)
				up = inspect.NewS3Uploader(client, cfg.Record.Bucket, cfg.Record.Prefix)
			}
			return runRecord(cmd.Context(), cfg, env, rec, up, opts, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write the trace to this file")
	cmd.Flags().StringVarP(&opts.bucket, "bucket", "b", "", "Upload the trace to this S3 bucket (default from config)")
	cmd.Flags().DurationVarP(&opts.duration, "duration", "d", 5*time.Second, "Stop long-running scenarios after this long")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print scenario output")

	return cmd
}

func runRecord(ctx context.Context, cfg *config.Config, env *demo.Env, rec *inspect.Recorder, up traceUploader, opts recordOptions, names []string, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	if err := demo.Run(runCtx, env, names...); err != nil {
		return err
	}

	if opts.out == "" && up == nil {
		if err := rec.WriteJSON(stdout); err != nil {
			return errors.New("X002").Wrap(err)
		}
		return nil
	}

	if opts.out != "" {
		if err := writeTrace(opts.out, rec); err != nil {
			return err
		}
		success("Wrote %d records to %s", len(rec.Records()), opts.out)
	}

	if up != nil {
		key, err := up.Upload(ctx, strings.Join(names, "+"), rec)
		if err != nil {
			return errors.New("X003").Wrap(err)
		}
		success("Uploaded s3://%s/%s", cfg.Record.Bucket, key)
	}

	if n := rec.Dropped(); n > 0 {
		warn("%d oldest records were dropped; raise record.buffer to keep them", n)
	}
	return nil
}

func writeTrace(path string, rec *inspect.Recorder) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New("X002").Wrap(err)
	}
	if err := rec.WriteJSON(f); err != nil {
		f.Close()
		return errors.New("X002").Wrap(err)
	}
	if err := f.Close(); err != nil {
		return errors.New("X002").Wrap(err)
	}
	return nil
}
