// Command ruler is the CLI entrypoint for the build engine: build,
// clean, run and again subcommands wired onto internal/build's
// scheduler, in the style of the teacher's hand-assembled cmd/lci.
package main

import (
	"fmt"
	"os"
	"path"

	"github.com/urfave/cli/v2"

	"github.com/rulerbuild/ruler/internal/build"
	"github.com/rulerbuild/ruler/internal/metrics"
	"github.com/rulerbuild/ruler/internal/printer"
	"github.com/rulerbuild/ruler/internal/rulerconfig"
	"github.com/rulerbuild/ruler/internal/system"
)

var rulesFlag = &cli.StringSliceFlag{
	Name:    "rules",
	Aliases: []string{"r"},
	Usage:   "Rule file path (repeatable)",
}

var directoryFlag = &cli.StringFlag{
	Name:    "directory",
	Aliases: []string{"d"},
	Usage:   "State directory",
	Value:   rulerconfig.DefaultDirectory,
}

var urlsFlag = &cli.StringFlag{
	Name:  "urls",
	Usage: "Mirror-url TOML file",
}

func main() {
	app := &cli.App{
		Name:  "ruler",
		Usage: "content-addressed build engine",
		Commands: []*cli.Command{
			buildCommand,
			cleanCommand,
			runCommand,
			againCommand,
			pushCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "ruler: %v\n", err)
		os.Exit(1)
	}
}

var buildCommand = &cli.Command{
	Name:      "build",
	Usage:     "run the scheduler against the given rule files",
	ArgsUsage: "[target]",
	Flags: []cli.Flag{
		rulesFlag,
		directoryFlag,
		urlsFlag,
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "rebuild whenever a source file changes",
		},
	},
	Action: func(c *cli.Context) error {
		sys := system.NewReal()
		opts, err := optionsFromContext(c)
		if err != nil {
			return err
		}

		if err := saveInvocation(sys, opts); err != nil {
			return err
		}

		if c.Bool("watch") {
			return watchAndBuild(sys, opts)
		}
		return runBuild(sys, opts)
	},
}

var cleanCommand = &cli.Command{
	Name:      "clean",
	Usage:     "back up a rule's targets to the cache and remove them from the tree",
	ArgsUsage: "[target]",
	Flags: []cli.Flag{
		rulesFlag,
		directoryFlag,
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Glob pattern of targets to leave untouched (repeatable)",
		},
	},
	Action: func(c *cli.Context) error {
		sys := system.NewReal()
		opts, err := optionsFromContext(c)
		if err != nil {
			return err
		}
		return runClean(sys, opts, rulerconfig.NewCleanExclusions(c.StringSlice("exclude")))
	},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "build a target then execute it",
	ArgsUsage: "<target> [args...]",
	Flags: []cli.Flag{
		rulesFlag,
		directoryFlag,
		urlsFlag,
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("usage: ruler run <target> [args...]", 1)
		}
		sys := system.NewReal()
		target := c.Args().First()
		opts, err := optionsFromContext(c)
		if err != nil {
			return err
		}
		opts.Goal = target

		if err := saveInvocation(sys, opts); err != nil {
			return err
		}
		if err := runBuild(sys, opts); err != nil {
			return err
		}

		out, err := sys.Execute(append([]string{"./" + target}, c.Args().Tail()...))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		fmt.Print(out.Stdout)
		fmt.Fprint(os.Stderr, out.Stderr)
		if !out.Success {
			return cli.Exit(fmt.Sprintf("%s exited with code %d", target, out.Code), 1)
		}
		return nil
	},
}

var againCommand = &cli.Command{
	Name:  "again",
	Usage: "re-execute the most recent build invocation",
	Flags: []cli.Flag{
		directoryFlag,
	},
	Action: func(c *cli.Context) error {
		sys := system.NewReal()
		directory := c.String("directory")
		configPath := path.Join(directory, "config.toml")

		inv, err := rulerconfig.LoadInvocation(sys, configPath)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		opts := build.Options{
			RuleFiles: inv.RuleFiles,
			Goal:      inv.Goal,
			Directory: inv.Directory,
		}
		return runBuild(sys, opts)
	},
}

var pushCommand = &cli.Command{
	Name:      "push",
	Usage:     "upload every local cache entry to a mirror",
	ArgsUsage: "<base-url>",
	Flags: []cli.Flag{
		directoryFlag,
	},
	Action: func(c *cli.Context) error {
		if c.NArg() < 1 {
			return cli.Exit("usage: ruler push <base-url>", 1)
		}
		return runPush(system.NewReal(), c.String("directory"), c.Args().First())
	},
}

func optionsFromContext(c *cli.Context) (build.Options, error) {
	ruleFiles := c.StringSlice("rules")
	if len(ruleFiles) == 0 {
		return build.Options{}, cli.Exit("at least one --rules <path> is required", 1)
	}

	opts := build.Options{
		RuleFiles: ruleFiles,
		Goal:      c.Args().First(),
		Directory: c.String("directory"),
	}

	if urlsPath := c.String("urls"); urlsPath != "" {
		mirrors, err := rulerconfig.LoadMirrors(system.NewReal(), urlsPath)
		if err != nil {
			return build.Options{}, cli.Exit(err.Error(), 1)
		}
		opts.Mirrors = mirrors.URLs
	}

	return opts, nil
}

func saveInvocation(sys system.System, opts build.Options) error {
	inv := rulerconfig.NewInvocation(opts.RuleFiles, opts.Goal)
	inv.Directory = opts.Directory
	if err := sys.MkdirAll(opts.Directory); err != nil {
		return err
	}
	return inv.Save(sys, path.Join(opts.Directory, "config.toml"))
}

func runBuild(sys system.System, opts build.Options) error {
	pr := printer.New(os.Stdout)
	m := metrics.New()

	workErrors, err := build.Run(sys, pr, m, opts)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if !workErrors.Empty() {
		return cli.Exit(workErrors.Error(), 1)
	}
	return nil
}
