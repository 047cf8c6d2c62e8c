package build

import (
	"io"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/rulerbuild/ruler/internal/cache"
	rulererrors "github.com/rulerbuild/ruler/internal/errors"
	"github.com/rulerbuild/ruler/internal/graph"
	"github.com/rulerbuild/ruler/internal/history"
	"github.com/rulerbuild/ruler/internal/metrics"
	"github.com/rulerbuild/ruler/internal/mirror"
	"github.com/rulerbuild/ruler/internal/printer"
	"github.com/rulerbuild/ruler/internal/resolve"
	"github.com/rulerbuild/ruler/internal/rule"
	"github.com/rulerbuild/ruler/internal/state"
	"github.com/rulerbuild/ruler/internal/system"
)

// Options configures one scheduler run (spec §4.J inputs).
type Options struct {
	RuleFiles []string
	Goal      string
	Directory string
	Mirrors   []string
}

// Run executes the full build scheduler: load state, parse and sort
// rules, wire the channel pack, spawn one worker per node, join them,
// and persist the current-file-state store and any changed rule
// histories. Returns WorkErrors aggregating every per-node failure;
// the build succeeded iff the returned WorkErrors is empty.
func Run(sys system.System, pr *printer.Printer, m *metrics.Registry, opts Options) (rulererrors.WorkErrors, error) {
	currentPath := path.Join(opts.Directory, "current")
	cachePath := path.Join(opts.Directory, "cache")
	historyPath := path.Join(opts.Directory, "history")

	current, err := state.OpenCurrent(sys, currentPath)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(sys, cachePath)
	if err != nil {
		return nil, err
	}
	historyStore, err := history.Open(sys, historyPath)
	if err != nil {
		return nil, err
	}

	var downloader resolve.Downloader
	if len(opts.Mirrors) > 0 {
		downloader = mirror.NewClient(sys, opts.Mirrors)
	}

	files := make([]rule.FileContent, 0, len(opts.RuleFiles))
	for _, rf := range opts.RuleFiles {
		f, err := sys.Open(rf)
		if err != nil {
			return nil, rulererrors.Wrap("build.Run", rulererrors.KindSystemError, err).WithPath(rf)
		}
		content, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			return nil, rulererrors.Wrap("build.Run", rulererrors.KindSystemError, readErr).WithPath(rf)
		}
		files = append(files, rule.FileContent{Filename: rf, Content: string(content)})
	}

	rules, err := rule.ParseAll(files)
	if err != nil {
		return nil, err
	}

	pack, err := graph.Sort(rules, opts.Goal)
	if err != nil {
		return nil, err
	}

	cp := BuildChannelPack(pack)

	leafResults := make([]LeafResult, len(pack.Leaves))
	leafErrs := make([]error, len(pack.Leaves))
	nodeResults := make([]RuleResult, len(pack.Nodes))
	nodeErrs := make([]error, len(pack.Nodes))

	histories := make([]*history.RuleHistory, len(pack.Nodes))
	targetBlobs := make([]state.Blob, len(pack.Nodes))
	for i, node := range pack.Nodes {
		targetBlobs[i] = current.TakeBlob(node.Targets)
		h, err := historyStore.Read(node.RuleTicket)
		if err != nil {
			return nil, err
		}
		histories[i] = h
	}

	var g errgroup.Group

	for i, leaf := range pack.Leaves {
		i, leaf := i, leaf
		g.Go(func() error {
			res, err := LeafWorker(sys, leaf, cp.LeafOutbound[i])
			leafResults[i] = res
			leafErrs[i] = err
			return err
		})
	}

	for i, node := range pack.Nodes {
		i, node := i, node
		g.Go(func() error {
			res, err := RuleWorker(sys, c, downloader, node, cp.NodeInbound[i], cp.NodeOutbound[i], histories[i], targetBlobs[i])
			nodeResults[i] = res
			nodeErrs[i] = err
			return err
		})
	}

	g.Wait()

	var workErrors rulererrors.WorkErrors
	for i, err := range leafErrs {
		if err == nil {
			current.InsertBlob(state.Blob{{Path: pack.Leaves[i], State: leafResults[i].State}})
			continue
		}
		if e, ok := err.(*rulererrors.Error); ok {
			workErrors = append(workErrors, e)
		}
	}

	for i, node := range pack.Nodes {
		err := nodeErrs[i]
		if err != nil {
			if e, ok := err.(*rulererrors.Error); ok {
				workErrors = append(workErrors, e)
				printFailure(pr, e, firstTarget(node))
			} else {
				printOutcome(pr, Canceled, firstTarget(node))
			}
			current.InsertBlob(targetBlobs[i])
			continue
		}

		res := nodeResults[i]
		for j, target := range node.Targets {
			printOutcome(pr, res.Outcomes[j], target)
			if m != nil {
				m.RecordResolution(outcomeLabel(res.Outcomes[j]))
			}
		}
		current.InsertBlob(res.Blob)

		if res.HistoryChanged {
			if err := historyStore.Write(res.RuleTicket, res.History); err != nil {
				return nil, err
			}
		}
	}

	if err := current.ToFile(); err != nil {
		return nil, err
	}

	return workErrors, nil
}

func printFailure(pr *printer.Printer, e *rulererrors.Error, path string) {
	if pr == nil {
		return
	}
	if e.Kind == rulererrors.KindCommandFailed {
		pr.CommandFailed(path, e.ExitCode)
		return
	}
	pr.Canceled(path)
}

func printOutcome(pr *printer.Printer, o Outcome, path string) {
	if pr == nil {
		return
	}
	switch o {
	case AlreadyCorrect:
		pr.AlreadyCorrect(path)
	case Recovered:
		pr.Recovered(path)
	case Downloaded:
		pr.Downloaded(path)
	case Rebuilt:
		pr.Building(path)
	case Canceled:
		pr.Canceled(path)
	}
}

func outcomeLabel(o Outcome) string {
	switch o {
	case AlreadyCorrect:
		return "already_correct"
	case Recovered:
		return "recovered"
	case Downloaded:
		return "downloaded"
	case Rebuilt:
		return "needs_rebuild"
	default:
		return "canceled"
	}
}
