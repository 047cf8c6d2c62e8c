// Command ruler-mirror runs the mirror HTTP interface (spec §6) over
// a local cache and history store, for other ruler invocations'
// --urls downloaders to pull from.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path"

	"github.com/urfave/cli/v2"

	"github.com/rulerbuild/ruler/internal/cache"
	"github.com/rulerbuild/ruler/internal/history"
	"github.com/rulerbuild/ruler/internal/metrics"
	"github.com/rulerbuild/ruler/internal/mirror"
	"github.com/rulerbuild/ruler/internal/system"
)

func main() {
	app := &cli.App{
		Name:  "ruler-mirror",
		Usage: "serve a local ruler cache over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "directory",
				Usage: "State directory backing the served cache and history",
				Value: ".ruler",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on",
				Value: ":8080",
			},
			&cli.BoolFlag{
				Name:  "allow-uploads",
				Usage: "Accept PUT /files/<ticket> from an operator-run push (disabled by default)",
			},
		},
		Action: func(c *cli.Context) error {
			sys := system.NewReal()
			directory := c.String("directory")

			cch, err := cache.Open(sys, path.Join(directory, "cache"))
			if err != nil {
				return err
			}
			h, err := history.Open(sys, path.Join(directory, "history"))
			if err != nil {
				return err
			}

			m := metrics.New()
			srv := mirror.NewServer(cch, h, m)
			srv.AllowUploads = c.Bool("allow-uploads")

			listen := c.String("listen")
			log.Printf("ruler-mirror listening on %s (uploads %v)", listen, srv.AllowUploads)
			return http.ListenAndServe(listen, srv.Handler())
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ruler-mirror: %v\n", err)
		os.Exit(1)
	}
}
