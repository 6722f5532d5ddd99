package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/versiond/cache"
	"github.com/deemkeen/versiond/db"
	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/federation"
	"github.com/deemkeen/versiond/middleware"
	"github.com/deemkeen/versiond/util"
	"github.com/deemkeen/versiond/web"
	"github.com/spf13/cobra"
)

const sshShutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP inbox, the delivery workers and the SSH console",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConf()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, conf)
		},
	}
}

// app holds the wired federation components.
type app struct {
	store    *db.DB
	cache    *cache.FetchCache
	key      *federation.InstanceKey
	uris     federation.URIs
	resolver *federation.Resolver
	outbox   *federation.Outbox
	inbox    *federation.InboxProcessor
}

func (a *app) Close() {
	a.cache.Close()
	a.store.Close()
}

func wire(ctx context.Context, conf *util.AppConfig) (*app, error) {
	bridge, err := federation.NewBridge(conf)
	if err != nil {
		return nil, err
	}
	defederation, err := federation.NewDefederation(conf.Defederation)
	if err != nil {
		return nil, err
	}
	filters, err := federation.NewFilters(conf)
	if err != nil {
		return nil, err
	}
	key, err := federation.LoadInstanceKey(conf.InstanceKeyFile())
	if err != nil {
		return nil, err
	}
	fetchCache, err := cache.New(ctx, conf.Cache.RedisAddr, conf.Cache.Ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	store, err := openDB(conf)
	if err != nil {
		fetchCache.Close()
		return nil, err
	}

	uris := federation.NewURIs(conf.Conf.Domain)
	fetcher := federation.NewHTTPFetcher(key.Private, conf.Conf.Domain, bridge)
	resolver := federation.NewResolver(store, fetcher, fetchCache, uris, bridge != nil)
	outbox := federation.NewOutbox(store, uris)

	return &app{
		store:    store,
		cache:    fetchCache,
		key:      key,
		uris:     uris,
		resolver: resolver,
		outbox:   outbox,
		inbox:    federation.NewInboxProcessor(store, resolver, outbox, defederation, bridge, filters, uris),
	}, nil
}

func serve(ctx context.Context, conf *util.AppConfig) error {
	logger := util.NewLogger("Main")
	logger.Debug("Configuration", "conf", util.PrettyPrint(conf.Redacted()))

	a, err := wire(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()

	var sshServer *ssh.Server
	if conf.Conf.WithSsh {
		if sshServer, err = newSSHServer(conf, a); err != nil {
			return err
		}
	}

	// the first component to fail stops the others
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runners []func(context.Context) error
	runners = append(runners,
		federation.NewDeliveryWorker(a.store, a.store, conf).Run,
		web.NewServer(conf, a.store, a.inbox, a.outbox.Renderer(), a.key.Public).Run,
	)
	if sshServer != nil {
		runners = append(runners, func(ctx context.Context) error {
			return runSSH(ctx, sshServer, conf)
		})
	}

	errc := make(chan error, len(runners))
	for _, run := range runners {
		go func() { errc <- run(ctx) }()
	}
	logger.Info("Serving", "domain", conf.Conf.Domain, "version", util.GetVersion())

	var firstErr error
	for range runners {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
			logger.Error("Shutting down", "err", err)
			cancel()
		}
	}
	return firstErr
}

func newSSHServer(conf *util.AppConfig, a *app) (*ssh.Server, error) {
	create := func(ctx context.Context, username, displayName string, locked bool) (*domain.Actor, error) {
		return federation.CreateLocalActor(ctx, a.store, a.uris, username, displayName, locked)
	}

	return wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.SshPort)),
		wish.WithHostKeyPath(conf.HostKeyFile()),
		wish.WithPublicKeyAuth(middleware.PublicKeyHandler),
		wish.WithMiddleware(
			middleware.MainTui(a.store, create, conf),
			middleware.AdminAuthMiddleware(conf),
			logging.Middleware(), // last middleware executed first
		),
	)
}

func runSSH(ctx context.Context, s *ssh.Server, conf *util.AppConfig) error {
	logger := util.NewLogger("SSH")
	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting SSH server", "host", conf.Conf.Host, "port", conf.Conf.SshPort)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, ssh.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Stopping SSH server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), sshShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}
