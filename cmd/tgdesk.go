package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/alexbilevskiy/tgdesk/internal/account"
	"github.com/alexbilevskiy/tgdesk/internal/backend"
	"github.com/alexbilevskiy/tgdesk/internal/config"
	"github.com/alexbilevskiy/tgdesk/internal/db"
	"github.com/alexbilevskiy/tgdesk/internal/logging"
	"github.com/alexbilevskiy/tgdesk/internal/marshal"
	"github.com/alexbilevskiy/tgdesk/internal/metrics"
	"github.com/alexbilevskiy/tgdesk/internal/notify"
	"github.com/alexbilevskiy/tgdesk/internal/ui"
	"github.com/alexbilevskiy/tgdesk/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.InitConfiguration()
	if err != nil {
		log.Fatal(err)
	}
	logger, closer, err := logging.Open(cfg.LogFile, cfg.Debug)
	if err != nil {
		log.Fatal(err)
	}

	err = run(cfg, logger)
	_ = closer.Close()
	if err != nil {
		log.Fatal(err)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	relay, err := backend.Dial(ctx, backend.RelayConfig{URL: cfg.BackendURL, Proxy: cfg.Proxy}, log)
	if err != nil {
		return err
	}
	defer relay.Close()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.Bell {
		notifier = notify.NewBell(os.Stdout, notifier)
	}

	acc := account.NewAccount(cfg, account.Deps{
		Handle:   relay,
		Store:    store,
		Notifier: notifier,
		Log:      log,
		Metrics:  m,
	})

	headless := cfg.Headless || !term.IsTerminal(int(os.Stdout.Fd()))
	var model *ui.Model
	if !headless {
		model = ui.New(acc)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	acc.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return acc.RunFolderWriter(gctx)
	})
	if cfg.WebListen != "" {
		g.Go(func() error {
			return web.Run(gctx, cfg.WebListen, web.NewHandler(acc, reg, log), log)
		})
	}
	if headless {
		log.Info("running without terminal UI")
		g.Go(func() error {
			return stopped(acc.Loop.Run(gctx))
		})
	} else {
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx))
		g.Go(func() error {
			return stopped(acc.Loop.Forward(gctx, func(task func()) {
				p.Send(ui.TaskMsg(task))
			}))
		})
		g.Go(func() error {
			_, err := p.Run()
			cancel()
			if errors.Is(err, tea.ErrProgramKilled) {
				return nil
			}
			return err
		})
	}

	err = g.Wait()

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if serr := acc.Shutdown(sctx); serr != nil {
		log.Warn("unclean shutdown", "error", serr)
	}
	log.Info("stopped")

	return err
}

// openStore picks MongoDB when a URI is configured and memory otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (db.FolderStore, func(), error) {
	if cfg.MongoURI() == "" {
		return &db.MemoryFolderStore{}, func() {}, nil
	}
	client, err := db.NewClient(ctx, cfg.MongoURI())
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(dctx); err != nil {
			log.Warn("failed to disconnect from mongo", "error", err)
		}
	}
	log.Info("chat folders persisted in mongo", "db", cfg.MongoDB())

	return db.NewMongoFolderStore(client, cfg.MongoDB()), closeFn, nil
}

func stopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, marshal.ErrClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("presentation loop: %w", err)
	}

	return nil
}
