package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/download"
	"github.com/dmorgan81/imagine/internal/image"
	"github.com/dmorgan81/imagine/internal/inject"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/dmorgan81/imagine/internal/poll"
	"github.com/dmorgan81/imagine/internal/prompt"
	"github.com/dmorgan81/imagine/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const defaultName = "mj-image.jpeg"

type generateOptions struct {
	prompt     string
	modifiers  []string
	provider   string
	taskID     string
	submitOnly bool
	out        string
	name       string
	timeout    time.Duration
	interval   time.Duration
	server     string
	prompts    string
	id         string
	logPath    string
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an image and download it",
		Long: `Generate one image from --prompt, or one per entry of a prompt set file
given with --prompts ([{"id": 1, "prompt": "..."}], narrowed with --id).

With --submit-only the midjourney task id is printed and nothing is
downloaded; pass it back later with --task-id to collect the image.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, root)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.prompt, "prompt", "p", "", "prompt text")
	f.StringArrayVarP(&opts.modifiers, "modifier", "m", nil, "midjourney modifier as key=value, repeatable")
	f.StringVar(&opts.provider, "provider", "", "midjourney, dalle or dezgo (default from config)")
	f.StringVar(&opts.taskID, "task-id", "", "resume an earlier midjourney task instead of submitting")
	f.BoolVar(&opts.submitOnly, "submit-only", false, "submit and print the task id without waiting")
	f.StringVarP(&opts.out, "out", "o", "", "output directory (default from config)")
	f.StringVar(&opts.name, "name", "", "output file name (default "+defaultName+" or ID.jpeg)")
	f.DurationVar(&opts.timeout, "timeout", 0, "give up waiting after this long")
	f.DurationVar(&opts.interval, "interval", 0, "midjourney poll interval")
	f.StringVar(&opts.server, "server", "", "midjourney-proxy server url")
	f.StringVar(&opts.prompts, "prompts", "", "prompt set file")
	f.StringVar(&opts.id, "id", "", "only generate this prompt id from --prompts")
	f.StringVar(&opts.logPath, "log", "", "run log file (default OUT/log.json with --prompts)")
	cmd.MarkFlagsMutuallyExclusive("task-id", "submit-only")
	cmd.MarkFlagsMutuallyExclusive("prompt", "prompts")
	return cmd
}

// job is one prompt to generate; id is empty for a bare --prompt.
type job struct {
	id     string
	prompt string
}

func (o *generateOptions) run(cmd *cobra.Command, root *rootOptions) error {
	ctx, cfg, err := root.load(cmd)
	if err != nil {
		return err
	}
	if err := o.apply(&cfg); err != nil {
		return err
	}

	jobs, err := o.jobs()
	if err != nil {
		return err
	}

	var runLog *store.RunLog
	if o.logPath != "" {
		if runLog, err = store.OpenRunLog(o.logPath); err != nil {
			return err
		}
	}

	injector := inject.SetupLocal(ctx, cfg)
	defer func() { _ = injector.Shutdown() }()
	g := &generation{
		opts:       o,
		router:     do.MustInvoke[*image.Router](injector),
		downloader: do.MustInvoke[*download.Downloader](injector),
		uploader:   do.MustInvoke[store.Uploader](injector),
		runLog:     runLog,
	}

	var errs []error
	for _, j := range jobs {
		entry, err := g.generate(ctx, j)
		if runLog != nil && j.id != "" {
			switch {
			case err == nil, errors.Is(err, poll.ErrCancelled):
				// A task we stopped waiting for is resumed by the next run.
				runLog.Record(entry)
			case isDeadTask(err):
				entry.TaskID = ""
				entry.Error = err.Error()
				runLog.Record(entry)
			}
		}
		if err != nil {
			log.FromContextOrDiscard(ctx).Error("generation failed", "id", j.id, "task", entry.TaskID, "error", err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary(entry))
	}

	if runLog != nil {
		if err := runLog.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// apply layers the flags over the loaded config.
func (o *generateOptions) apply(cfg *config.Config) error {
	if o.provider != "" {
		cfg.Provider = o.provider
	}
	if o.server != "" {
		cfg.Midjourney.ServerURL = o.server
	}
	if o.timeout > 0 {
		cfg.Midjourney.Timeout = o.timeout
	}
	if o.interval > 0 {
		cfg.Midjourney.PollInterval = o.interval
	}
	o.provider = cfg.Provider
	o.out = lo.Ternary(o.out != "", o.out, cfg.Output.Dir)
	cfg.Output.Dir = o.out
	if o.prompts != "" && o.logPath == "" {
		o.logPath = filepath.Join(o.out, "log.json")
	}
	return cfg.Validate()
}

func (o *generateOptions) jobs() ([]job, error) {
	if o.prompts == "" {
		if o.prompt == "" && o.taskID == "" {
			return nil, errors.New("one of --prompt, --prompts or --task-id is required")
		}
		return []job{{id: o.id, prompt: o.prompt}}, nil
	}

	set, err := prompt.LoadSet(o.prompts)
	if err != nil {
		return nil, err
	}
	if o.id != "" {
		e, ok := set.Find(o.id)
		if !ok {
			return nil, fmt.Errorf("prompt id %q not in %s", o.id, o.prompts)
		}
		set = prompt.Set{e}
	}
	if len(set) > 1 && (o.taskID != "" || o.name != "") {
		return nil, errors.New("--task-id and --name need a single prompt, narrow --prompts with --id")
	}
	return lo.Map(set, func(e prompt.Entry, _ int) job {
		return job{id: e.ID, prompt: e.Prompt}
	}), nil
}

type generation struct {
	opts       *generateOptions
	router     *image.Router
	downloader *download.Downloader
	uploader   store.Uploader
	runLog     *store.RunLog
}

func (g *generation) fileName(j job) string {
	switch {
	case g.opts.name != "":
		return g.opts.name
	case j.id != "":
		return j.id + ".jpeg"
	default:
		return defaultName
	}
}

func (g *generation) generate(ctx context.Context, j job) (store.RunEntry, error) {
	entry := store.RunEntry{ID: j.id, Prompt: j.prompt, Provider: g.opts.provider, TaskID: g.opts.taskID}
	name := g.fileName(j)
	dest := filepath.Join(g.opts.out, name)

	if g.runLog != nil && j.id != "" {
		if prev, ok := g.runLog.Entry(j.id); ok {
			if prev.ImagePath != "" && fileExists(prev.ImagePath) {
				return prev, nil
			}
			// An earlier run submitted this prompt but never collected it.
			if prev.TaskID != "" && g.opts.submitOnly {
				return prev, nil
			}
			if entry.TaskID == "" {
				entry.TaskID = prev.TaskID
			}
		}
	}
	if fileExists(dest) {
		entry.ImagePath = dest
		return entry, nil
	}

	mods, err := config.ParseModifiers(g.opts.modifiers)
	if err != nil {
		return entry, err
	}
	artifact, err := g.router.Generate(ctx, image.Params{
		Provider:   g.opts.provider,
		Prompt:     j.prompt,
		Modifiers:  mods,
		TaskID:     entry.TaskID,
		SubmitOnly: g.opts.submitOnly,
	})
	entry.TaskID = lo.Ternary(artifact.TaskID != "", artifact.TaskID, entry.TaskID)
	if err != nil {
		return entry, err
	}
	if artifact.Pending {
		return entry, nil
	}
	entry.ImageURL = artifact.URL

	if len(artifact.Data) > 0 {
		entry.ImagePath, err = g.uploader.Upload(ctx, store.UploadParams{
			Name:        name,
			Data:        artifact.Data,
			ContentType: artifact.ContentType,
		})
		return entry, err
	}
	entry.ImagePath, err = g.downloader.Download(ctx, artifact.URL, dest)
	return entry, err
}

// isDeadTask reports errors after which the task id is useless and the
// prompt has to be submitted again.
func isDeadTask(err error) bool {
	var failure *poll.RemoteTaskFailure
	return errors.As(err, &failure) || errors.Is(err, poll.ErrSubmitRejected)
}

// summary is the tab separated line printed for each prompt.
func summary(e store.RunEntry) string {
	id := lo.Ternary(e.ID != "", e.ID, "-")
	if e.ImagePath == "" {
		return fmt.Sprintf("%s\tpending\t%s", id, e.TaskID)
	}
	return fmt.Sprintf("%s\tdone\t%s", id, e.ImagePath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
