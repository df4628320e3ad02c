package main

import (
	"errors"
	"io"
	"log/slog"

	"metro-sim/internal/config"
	"metro-sim/internal/sink"
)

type sinkOptions struct {
	PrintOnly bool // skip the network exporters
	Stdout    bool
	Color     bool
	LogFile   string
}

// newSinks builds the exporters selected by cfg and opts. It returns nil when
// nothing is enabled. The cleanup function closes every opened exporter.
func newSinks(cfg *config.Config, opts sinkOptions, log *slog.Logger) (sink.Writer, func(), error) {
	var (
		writers []sink.Writer
		closers []io.Closer
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("closing sink", "err", err)
			}
		}
	}
	fail := func(err error) (sink.Writer, func(), error) {
		cleanup()
		return nil, nil, err
	}

	if opts.Stdout {
		if opts.Color {
			writers = append(writers, sink.NewColorStdoutWriter())
		} else {
			writers = append(writers, sink.NewJSONStdoutWriter())
		}
	}
	if opts.LogFile != "" {
		fw, err := sink.NewFileWriter(opts.LogFile)
		if err != nil {
			return fail(err)
		}
		writers = append(writers, fw)
		closers = append(closers, fw)
	}

	if !opts.PrintOnly && cfg != nil {
		s := cfg.Sinks
		if s.Greptime.Endpoint != "" {
			gw, err := sink.NewGreptimeDBWriter(s.Greptime.Endpoint, s.Greptime.Database, s.Greptime.Table, log.With("sink", "greptime"))
			if err != nil {
				return fail(err)
			}
			writers = append(writers, gw)
		}
		if s.NATS.URL != "" {
			nw, err := sink.NewNATSWriter(s.NATS.URL, s.NATS.Prefix, log.With("sink", "nats"))
			if err != nil {
				return fail(err)
			}
			writers = append(writers, nw)
			closers = append(closers, nw)
		}
		if s.AMQP.URL != "" {
			aw, err := sink.NewAMQPWriter(s.AMQP.URL, s.AMQP.Exchange, log.With("sink", "amqp"))
			if err != nil {
				return fail(err)
			}
			writers = append(writers, aw)
			closers = append(closers, aw)
		}
	}

	switch len(writers) {
	case 0:
		return nil, cleanup, nil
	case 1:
		return writers[0], cleanup, nil
	default:
		return sink.NewMultiWriter(writers...), cleanup, nil
	}
}

var errNoSinks = errors.New("no sink enabled")
