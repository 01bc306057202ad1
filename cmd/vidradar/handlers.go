package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/vidradar/internal/config"
	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/internal/scheduler"
	"github.com/elonfeng/vidradar/internal/store"
	"github.com/elonfeng/vidradar/pkg/alert"
	"github.com/elonfeng/vidradar/pkg/server"
	"github.com/elonfeng/vidradar/pkg/source"
	"github.com/elonfeng/vidradar/pkg/trend"
	"github.com/elonfeng/vidradar/pkg/video"
)

// app holds what every command needs.
type app struct {
	cfg    *config.Config
	log    logger.Logger
	engine *trend.Engine
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	opts, err := cfg.EngineOptions(log)
	if err != nil {
		return nil, err
	}
	engine, err := trend.NewEngine(opts)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return &app{cfg: cfg, log: log, engine: engine}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

func (a *app) region(r string) string {
	if r == "" {
		return a.cfg.Ranking.DefaultRegion
	}
	return strings.ToUpper(r)
}

func (a *app) buildCollectors(ctx context.Context) []source.Collector {
	var (
		collectors []source.Collector
		catalog    *source.Catalog
	)

	if a.cfg.Sources.YouTube.Enabled {
		c, err := source.NewCatalog(ctx, a.cfg.CatalogConfig(), a.log)
		switch {
		case errors.Is(err, source.ErrNoAPIKey):
			a.log.Warn("youtube collector disabled: no api key (set YOUTUBE_API_KEY)")
		case err != nil:
			a.log.Error("youtube collector disabled", logger.Error(err))
		default:
			catalog = c
			collectors = append(collectors, c)
		}
	}
	if a.cfg.Sources.Scraper.Enabled {
		var enricher source.Enricher
		if catalog != nil {
			enricher = catalog
		}
		collectors = append(collectors, source.NewScraper(a.cfg.ScraperConfig(), enricher, a.log))
	}
	if a.cfg.Sources.Feeds.Enabled && len(a.cfg.Sources.Feeds.Channels) > 0 {
		collectors = append(collectors, source.NewFeeds(a.cfg.FeedsConfig(), a.log))
	}
	return collectors
}

func (a *app) buildAlertManager() *alert.Manager {
	var notifiers []alert.Notifier

	if a.cfg.Alerts.Slack.Enabled && a.cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(a.cfg.Alerts.Slack.WebhookURL))
	}
	if a.cfg.Alerts.Discord.Enabled && a.cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(a.cfg.Alerts.Discord.WebhookURL))
	}
	if a.cfg.Alerts.Webhook.Enabled && a.cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(a.cfg.Alerts.Webhook.URL, a.cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	db, err := store.New(a.cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

type rankOptions struct {
	query, region, input string
	top                  int
	minDuration          time.Duration
	jsonOutput, noSave   bool
}

func runRank(ctx context.Context, opts rankOptions) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	region := a.region(opts.region)

	var batches []video.Batch
	if opts.input != "" {
		batches, err = readBatches(opts.input)
		if err != nil {
			return err
		}
	} else {
		collectors := a.buildCollectors(ctx)
		if len(collectors) == 0 {
			return errors.New("no collectors enabled and no --input given")
		}
		var errs []error
		batches, errs = source.CollectAll(ctx, collectors, source.Query{Text: opts.query, Region: region}, a.log)
		reportErrors(os.Stderr, errs)
	}

	ranking, err := a.engine.Rank(ctx, trend.Request{
		Query:              opts.query,
		Region:             region,
		Batches:            batches,
		Top:                opts.top,
		MinDurationSeconds: int64(opts.minDuration / time.Second),
	})
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	if !opts.noSave {
		db, err := a.openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveRun(ctx, ranking); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	if opts.jsonOutput {
		return writeJSON(os.Stdout, ranking)
	}
	return printRanking(os.Stdout, ranking)
}

// readBatches accepts either a list of batches or a single ranking request.
func readBatches(path string) ([]video.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batches %s: %w", path, err)
	}

	var batches []video.Batch
	if err := json.Unmarshal(data, &batches); err == nil {
		return batches, nil
	}
	var req trend.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse batches %s: %w", path, err)
	}
	return req.Batches, nil
}

func runCollect(ctx context.Context, query, region string, only []string, out string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	collectors := a.buildCollectors(ctx)
	if len(only) > 0 {
		wanted := make(map[string]bool)
		for _, s := range only {
			wanted[strings.ToLower(strings.TrimSpace(s))] = true
		}
		var picked []source.Collector
		for _, c := range collectors {
			if wanted[c.Name()] {
				picked = append(picked, c)
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("no matching collectors for: %s", strings.Join(only, ", "))
		}
		collectors = picked
	}
	if len(collectors) == 0 {
		return errors.New("no collectors enabled")
	}

	batches, errs := collectEach(ctx, collectors, source.Query{Text: query, Region: a.region(region)}, a.log)
	reportErrors(os.Stderr, errs)
	if len(errs) == len(collectors) && len(batches) == 0 {
		return fmt.Errorf("all collectors failed: %w", errors.Join(errs...))
	}

	total := 0
	for _, b := range batches {
		total += len(b.Videos)
	}
	fmt.Fprintf(os.Stderr, "collected %d videos in %d batches from %d collectors\n", total, len(batches), len(collectors))

	if out == "" {
		return writeJSON(os.Stdout, batches)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := writeJSON(f, batches); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// collectEach runs every collector concurrently. Batches keep collector order.
func collectEach(ctx context.Context, collectors []source.Collector, q source.Query, log logger.Logger) ([]video.Batch, []error) {
	results := make([][]video.Batch, len(collectors))
	failures := make([][]error, len(collectors))

	var wg sync.WaitGroup
	for i, c := range collectors {
		wg.Go(func() {
			results[i], failures[i] = source.CollectAll(ctx, []source.Collector{c}, q, log)
		})
	}
	wg.Wait()

	var (
		batches []video.Batch
		errs    []error
	)
	for i := range collectors {
		batches = append(batches, results[i]...)
		errs = append(errs, failures[i]...)
	}
	return batches, errs
}

func reportErrors(w io.Writer, errs []error) {
	for _, err := range errs {
		fmt.Fprintf(w, "warning: %v\n", err)
	}
}

func runHistory(ctx context.Context, query, region string, limit int, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	opts := store.ListOpts{Query: query, Limit: limit}
	if region != "" {
		opts.Region = strings.ToUpper(region)
	}
	runs, err := db.ListRuns(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeJSON(os.Stdout, runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs stored (try: vidradar rank --query ...)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tREGION\tQUERY\tRANKED\tFILTERED\tTOP")
	for _, r := range runs {
		top := r.TopVideoID
		if r.TopTrulyTrending {
			top += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Region, r.Query, r.Ranked, r.Filtered, top)
	}
	return w.Flush()
}

func runShow(ctx context.Context, id string, jsonOutput bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(os.Stdout, run.Ranking)
	}
	return printRanking(os.Stdout, run.Ranking)
}

func runServe(ctx context.Context, port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	srv := server.New(db, a.engine, a.buildCollectors(ctx), port, a.log).WithRateLimit(a.cfg.Server.RateLimit)
	return srv.ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	collectors := a.buildCollectors(ctx)
	watch := make([]scheduler.Watch, len(a.cfg.Watch))
	for i, w := range a.cfg.Watch {
		watch[i] = scheduler.Watch{Query: w.Query, Region: w.Region, Top: w.Top}
	}
	sched := scheduler.New(db, collectors, a.engine, a.buildAlertManager(), watch,
		a.cfg.Schedule.ParseRankInterval(), a.log)
	srv := server.New(db, a.engine, collectors, port, a.log).WithRateLimit(a.cfg.Server.RateLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	err = g.Wait()
	a.log.Info("shut down")
	return err
}

func printRanking(w io.Writer, r *trend.Ranking) error {
	if r == nil {
		return errors.New("run has no ranking")
	}
	fmt.Fprintf(w, "region %s  query %q  intent %s  (%d received, %d duplicates, %d invalid)\n\n",
		r.Region, r.Query, r.Context.Intent, r.Stats.Received, r.Stats.Duplicates, r.Stats.Invalid)

	if len(r.Results) == 0 {
		fmt.Fprintln(w, "no results")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tREL\tCONF\tSOURCE\tCHANNEL\tTITLE")
	for _, res := range r.Results {
		mark := ""
		if res.TrulyTrending {
			mark = " *"
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t%s%s\t%s\t%s\n",
			res.Rank, res.NormalizedScore, res.Relevance.Score, res.Confidence,
			res.Record.Source, mark, res.Record.Channel, truncate(res.Record.Title, 60))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
