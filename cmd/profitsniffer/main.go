package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"profitsniffer/internal/domain/model"
	"profitsniffer/internal/infrastructure/config"
	"profitsniffer/internal/infrastructure/logger"
	"profitsniffer/internal/infrastructure/svc"
)

const usage = `usage: profitsniffer [-config path] <command> [args]

commands:
  run                          poll the fleet until interrupted (default)
  once                         run a single fleet cycle and print the report
  subscribe <id>               register a subscriber
  filters <id> [name=value..]  set a subscriber's listing filters
  holdings <id>                print the pairs a subscriber currently holds
  list                         print all subscribers
  refresh <id>                 run one subscriber's pipeline now
`

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	closer := logger.Setup(cfg.Log)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer sc.Close()

	cmd, args := "run", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if err := dispatch(ctx, sc, cmd, args); err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("command failed")
		sc.Close()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, sc *svc.ServiceContext, cmd string, args []string) error {
	subs := sc.App().SubscriberService()

	switch cmd {
	case "run":
		log.Info().
			Str("app", sc.Config.App.Name).
			Dur("interval", sc.Config.Interval()).
			Str("storage", sc.Config.Storage.Driver).
			Msg("profitsniffer started")
		err := sc.Run(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("profitsniffer stopped")
			return nil
		}
		return err

	case "once":
		report, err := sc.Scheduler().RunCycle(ctx)
		if err != nil {
			return err
		}
		return sc.Console.WriteReport(report)

	case "subscribe":
		id, err := argID(args)
		if err != nil {
			return err
		}
		sub, created, err := subs.Register(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s created=%v url=%s\n", sub.ID, created, sub.FilterURL)
		return nil

	case "filters":
		id, err := argID(args)
		if err != nil {
			return err
		}
		params, err := parseFilters(args[1:])
		if err != nil {
			return err
		}
		u, err := subs.UpdateFilters(ctx, id, params)
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil

	case "holdings":
		id, err := argID(args)
		if err != nil {
			return err
		}
		pairs, err := subs.Holdings(ctx, id)
		if err != nil {
			return err
		}
		return sc.Console.WritePairs(pairs)

	case "list":
		all, err := subs.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range all {
			fmt.Printf("%s\t%s\n", s.ID, s.FilterURL)
		}
		return nil

	case "refresh":
		id, err := argID(args)
		if err != nil {
			return err
		}
		res, err := sc.Scheduler().RunSubscriber(ctx, id)
		if err != nil {
			return err
		}
		return sc.Console.WriteReport(&model.CycleReport{ID: "manual", Results: []model.SubscriberResult{res}})

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func argID(args []string) (string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("missing subscriber id")
	}
	return strings.TrimSpace(args[0]), nil
}

// parseFilters reads name=value pairs in command-line order.
func parseFilters(args []string) ([]model.FilterParam, error) {
	out := make([]model.FilterParam, 0, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("filter %q: want name=value", a)
		}
		out = append(out, model.FilterParam{Name: name, Value: value})
	}
	return out, nil
}
