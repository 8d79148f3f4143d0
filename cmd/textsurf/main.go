// Command textsurf serves character- and line-range excerpts of plain
// UTF-8 text documents over HTTP, demand-paging file contents through a
// concurrent text pool instead of loading whole documents into memory.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/knaw-huc/textsurf/httpapi"
	"github.com/knaw-huc/textsurf/lib/atexit"
	"github.com/knaw-huc/textsurf/pool"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type runOptions struct {
	bind, basedir, baseurl, extension string
	unloadTime, sweepInterval         int
	writable, noLines, debug          bool
}

func newRootCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "textsurf",
		Short: "Serve character/line-range excerpts of plain text files over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.bind, "bind", "127.0.0.1:8080", "The host and port to bind to")
	flags.StringVarP(&opts.basedir, "basedir", "d", ".", "The base directory to serve from")
	flags.StringVarP(&opts.baseurl, "baseurl", "u", "", "The public-facing base URL, used in self-referential links")
	flags.StringVarP(&opts.extension, "extension", "e", "txt", "The extension for plain text files; empty allows literal filenames")
	flags.IntVar(&opts.unloadTime, "unload-time", 600, "Seconds before an idle text is unloaded from memory")
	flags.IntVar(&opts.sweepInterval, "sweep-interval", 60, "Seconds between background eviction sweeps")
	flags.BoolVarP(&opts.writable, "writable", "w", false, "Allow uploads and deletes of texts")
	flags.BoolVar(&opts.noLines, "no-lines", false, "Disable the line index (line=B,E queries will fail)")
	flags.BoolVar(&opts.debug, "debug", false, "Log every incoming request")

	return cmd
}

func run(opts runOptions) error {
	log := logrus.New()
	if opts.debug {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	httpapi.SetVersion(version)

	p, err := pool.New(pool.Options{
		BaseDir:       opts.basedir,
		Extension:     opts.extension,
		ReadOnly:      !opts.writable,
		LineIndex:     !opts.noLines,
		UnloadTime:    time.Duration(opts.unloadTime) * time.Second,
		SweepInterval: time.Duration(opts.sweepInterval) * time.Second,
		WaitInterval:  100 * time.Millisecond,
	})
	if err != nil {
		return err
	}

	baseURL := opts.baseurl
	if baseURL == "" {
		baseURL = "http://" + opts.bind + "/"
	}

	handler := httpapi.NewRouter(p, log, baseURL)
	srv, err := httpapi.NewServer(httpapi.Options{BindAddr: opts.bind}, handler)
	if err != nil {
		return err
	}

	errs := make(chan error, 1)
	srv.Serve(errs)
	log.Infof("textsurf %s listening on %s, serving %s", version, srv.Addr(), opts.basedir)

	stopEvictor := startEvictor(p, log)
	atexit.Register(func() {
		stopEvictor()
		if ids, flushErr := p.Flush(true); flushErr != nil {
			log.WithError(flushErr).Error("flush on shutdown failed")
		} else {
			log.Infof("flushed %d text(s) on shutdown", len(ids))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	shutdown := make(chan struct{})
	go func() {
		atexit.WaitForSignal()
		close(shutdown)
	}()

	select {
	case err := <-errs:
		atexit.Run()
		return err
	case <-shutdown:
		return nil
	}
}

// startEvictor runs the background eviction sweep: every
// SweepInterval, evict every text idle past UnloadTime. The returned
// func stops the sweep.
func startEvictor(p *pool.Pool, log *logrus.Logger) func() {
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.SweepInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ids, err := p.Flush(false)
				if err != nil {
					log.WithError(err).Error("background flush failed")
					continue
				}
				if len(ids) > 0 {
					log.Debugf("evicted %d idle text(s)", len(ids))
				}
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}
