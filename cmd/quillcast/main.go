package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"quillcast/internal/accounts"
	"quillcast/internal/ai"
	"quillcast/internal/analyzer"
	"quillcast/internal/cmdlog"
	"quillcast/internal/config"
	"quillcast/internal/generator"
	"quillcast/internal/guard"
	"quillcast/internal/jobs"
	"quillcast/internal/metrics"
	"quillcast/internal/profile"
	"quillcast/internal/publisher"
	"quillcast/internal/quota"
	"quillcast/internal/scheduler"
	"quillcast/internal/store/postdb"
	"quillcast/internal/theme"
	"quillcast/internal/xclient"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "fetch":
		cmdFetch()
	case "analyze":
		cmdAnalyze()
	case "generate":
		cmdGenerate()
	case "post":
		cmdPost()
	case "schedule":
		cmdSchedule()
	case "run":
		cmdRun()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: quillcast <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./quillcast.yaml")
	fmt.Println("  fetch       Fetch recent posts into the local corpus")
	fmt.Println("  analyze     Build a style profile from the corpus")
	fmt.Println("  generate    Draft a post in the profile's voice")
	fmt.Println("  post        Generate, gate and publish one post")
	fmt.Println("  schedule    Run the recurring posting loop")
	fmt.Println("  run         Fetch, analyze if needed, then schedule")
}

func fail(err error) {
	fmt.Println("error:", err)
	os.Exit(1)
}

func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fail(err)
	}
	return cfg
}

func openDB(cfg config.Config) *postdb.DB {
	db, err := postdb.Open(cfg.Storage.DBPath)
	if err != nil {
		fail(err)
	}
	return db
}

// sourceHandles is the set of handles whose corpora feed analysis:
// explicit sources when configured, otherwise the account itself.
func sourceHandles(cfg config.Config) []string {
	if len(cfg.Account.SourceHandles) > 0 {
		return cfg.Account.SourceHandles
	}
	if cfg.Account.Handle != "" {
		return []string{cfg.Account.Handle}
	}
	return nil
}

func platformFactory(cfg config.Config) publisher.PlatformFactory {
	key, secret := cfg.Credentials.APIKey, cfg.Credentials.APISecret
	return func(creds accounts.Credentials) publisher.Platform {
		return xclient.NewWriter(key, secret, creds)
	}
}

func newScheduler(cfg config.Config, db *postdb.DB, opts scheduler.Options) *scheduler.Scheduler {
	provider := ai.New(cfg.AI)
	blend := len(cfg.Account.SourceHandles) > 0
	profiles := profile.NewPostingSource(profile.NewStore(cfg.Storage.ProfileDir), blend)
	gen := generator.New(provider)
	gate := guard.New(provider, cfg.Posting.Blocklist, cfg.Posting.MinSafetyScore)
	tracker := quota.NewTracker(db, cfg.Posting.MaxPerDay)
	registry := accounts.NewRegistry(cfg)
	poster := publisher.New(platformFactory(cfg), db)
	return scheduler.New(profiles, gen, gate, tracker, registry, poster, db, opts)
}

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./quillcast.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	err := cmdlog.Run("init", func() error {
		if err := config.Save(*path, config.Default()); err != nil {
			return err
		}
		abs, _ := filepath.Abs(*path)
		theme.PrintBanner()
		fmt.Println("Config written to:", abs)
		return nil
	})
	if err != nil {
		fail(err)
	}
}

func cmdFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "./quillcast.yaml", "config path")
	handle := fs.String("handle", "", "fetch a single handle instead of the configured sources")
	limit := fs.Int("limit", jobs.DefaultFetchLimit, "max posts per handle")
	_ = fs.Parse(os.Args[2:])
	err := cmdlog.Run("fetch", func() error {
		cfg := loadConfig(*cfgPath)
		if cfg.Credentials.BearerToken == "" {
			fmt.Println("warning: missing X_BEARER_TOKEN; API calls will fail")
		}
		db := openDB(cfg)
		defer db.Close()
		reader := xclient.NewHTTPReader(cfg.Credentials.BearerToken)
		handles := sourceHandles(cfg)
		if *handle != "" {
			handles = []string{*handle}
		}
		n, err := jobs.FetchAll(context.Background(), db, reader, handles, *limit)
		fmt.Printf("Fetched %d posts across %d handle(s)\n", n, len(handles))
		return err
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdAnalyze() {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	cfgPath := fs.String("config", "./quillcast.yaml", "config path")
	handle := fs.String("handle", "", "analyze a single handle")
	combined := fs.Bool("combined", false, "blend all source handles into one profile")
	_ = fs.Parse(os.Args[2:])
	err := cmdlog.Run("analyze", func() error {
		cfg := loadConfig(*cfgPath)
		db := openDB(cfg)
		defer db.Close()
		a := analyzer.New(ai.New(cfg.AI), db, profile.NewStore(cfg.Storage.ProfileDir))
		ctx := context.Background()
		if *combined {
			p, err := a.AnalyzeCombined(ctx, sourceHandles(cfg))
			if err != nil {
				return err
			}
			fmt.Printf("Combined profile from %s\n", strings.Join(p.SourceHandles, ", "))
			fmt.Printf("tone=%s topics=%s\n", p.Tone, strings.Join(p.Topics, ", "))
			return nil
		}
		h := *handle
		if h == "" {
			h = cfg.Account.Handle
		}
		p, err := a.Analyze(ctx, h)
		if err != nil {
			return err
		}
		fmt.Printf("Profile for @%s from %d posts\n", p.Handle, p.AnalyzedCount)
		fmt.Printf("tone=%s topics=%s\n", p.Tone, strings.Join(p.Topics, ", "))
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdGenerate() {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	cfgPath := fs.String("config", "./quillcast.yaml", "config path")
	handle := fs.String("handle", "", "profile handle; defaults to the account")
	topic := fs.String("topic", "", "topic to write about")
	extra := fs.String("extra", "", "extra guidance for the draft")
	suggest := fs.Bool("suggest", false, "print topic suggestions instead of a draft")
	_ = fs.Parse(os.Args[2:])
	err := cmdlog.Run("generate", func() error {
		cfg := loadConfig(*cfgPath)
		h := *handle
		if h == "" {
			h = cfg.Account.Handle
		}
		store := profile.NewStore(cfg.Storage.ProfileDir)
		p, err := profile.NewPostingSource(store, len(cfg.Account.SourceHandles) > 0).Load(h)
		if err != nil {
			return err
		}
		if *suggest {
			for _, t := range generator.SuggestTopics(p) {
				fmt.Println("-", t)
			}
			return nil
		}
		text, err := generator.New(ai.New(cfg.AI)).Generate(context.Background(), p, *topic, *extra)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdPost() {
	fs := flag.NewFlagSet("post", flag.ExitOnError)
	cfgPath := fs.String("config", "./quillcast.yaml", "config path")
	handle := fs.String("handle", "", "handle to post as; defaults to the account")
	topic := fs.String("topic", "", "topic to write about")
	extra := fs.String("extra", "", "extra guidance for the draft")
	dryRun := fs.Bool("dry-run", false, "draft and log without publishing")
	_ = fs.Parse(os.Args[2:])
	err := cmdlog.Run("post", func() error {
		cfg := loadConfig(*cfgPath)
		db := openDB(cfg)
		defer db.Close()
		registry := accounts.NewRegistry(cfg)
		h := registry.Resolve(*handle)
		s := newScheduler(cfg, db, scheduler.Options{
			Topic:       *topic,
			Extra:       *extra,
			DryRun:      *dryRun,
			SafetyCheck: cfg.Posting.SafetyCheck,
		})
		outcome, err := s.Cycle(context.Background(), h)
		fmt.Printf("outcome=%s handle=@%s\n", outcome, h)
		return err
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdSchedule() {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	cfgPath := fs.String("config", "./quillcast.yaml", "config path")
	topic := fs.String("topic", "", "topic every cycle writes about")
	dryRun := fs.Bool("dry-run", false, "draft and log without publishing")
	_ = fs.Parse(os.Args[2:])
	err := cmdlog.Run("schedule", func() error {
		cfg := loadConfig(*cfgPath)
		db := openDB(cfg)
		defer db.Close()
		runSchedule(cfg, db, *topic, *dryRun)
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

// cmdRun is the one-shot bootstrap: fetch corpora, analyze any handle
// without a profile, then hand off to the scheduling loop.
func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./quillcast.yaml", "config path")
	topic := fs.String("topic", "", "topic every cycle writes about")
	dryRun := fs.Bool("dry-run", false, "draft and log without publishing")
	_ = fs.Parse(os.Args[2:])
	err := cmdlog.Run("run", func() error {
		cfg := loadConfig(*cfgPath)
		db := openDB(cfg)
		defer db.Close()
		ctx := context.Background()

		reader := xclient.NewHTTPReader(cfg.Credentials.BearerToken)
		if _, err := jobs.FetchAll(ctx, db, reader, sourceHandles(cfg), jobs.DefaultFetchLimit); err != nil {
			return err
		}

		profiles := profile.NewStore(cfg.Storage.ProfileDir)
		a := analyzer.New(ai.New(cfg.AI), db, profiles)
		if len(cfg.Account.SourceHandles) > 0 {
			if !profiles.Exists(profile.CombinedHandle) {
				p, err := a.AnalyzeCombined(ctx, cfg.Account.SourceHandles)
				if err != nil {
					return err
				}
				fmt.Printf("Analyzed combined profile from %s\n", strings.Join(p.SourceHandles, ", "))
			}
		} else {
			registry := accounts.NewRegistry(cfg)
			for _, h := range registry.Handles() {
				if profiles.Exists(h) {
					continue
				}
				if _, err := a.Analyze(ctx, h); err != nil {
					return err
				}
				fmt.Println("Analyzed @" + h)
			}
		}

		runSchedule(cfg, db, *topic, *dryRun)
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func runSchedule(cfg config.Config, db *postdb.DB, topic string, dryRun bool) {
	metrics.StartServer(cfg.Metrics.Addr)
	registry := accounts.NewRegistry(cfg)
	s := newScheduler(cfg, db, scheduler.Options{
		Handles:     registry.Handles(),
		Interval:    time.Duration(cfg.Posting.IntervalHours * float64(time.Hour)),
		MinDelay:    time.Duration(cfg.Posting.MinDelaySec) * time.Second,
		MaxDelay:    time.Duration(cfg.Posting.MaxDelaySec) * time.Second,
		Topic:       topic,
		DryRun:      dryRun,
		SafetyCheck: cfg.Posting.SafetyCheck,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	theme.PrintBanner()
	fmt.Printf("Scheduling %d account(s) every %s\n", len(registry.Handles()), s.Interval())
	s.Run(ctx)
}
