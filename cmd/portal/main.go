package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/academy-portal/apiclient"
	"github.com/jrsteele09/academy-portal/credentials"
	"github.com/jrsteele09/academy-portal/credentials/filestore"
	"github.com/jrsteele09/academy-portal/credentials/redisstore"
	"github.com/jrsteele09/academy-portal/internal/config"
	"github.com/jrsteele09/academy-portal/internal/logging"
	"github.com/jrsteele09/academy-portal/server"
	"github.com/jrsteele09/academy-portal/session"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running portal")
	}
	log.Info().Msg("Portal stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	creds, closeCreds, err := openCredentials(ctx, c)
	if err != nil {
		return err
	}
	defer closeCreds()

	api := apiclient.New(c.GetAPIBaseURL(), creds, apiclient.WithTimeout(c.GetAPITimeout()))
	sessions := session.New(api, creds, session.WithProfileTimeout(c.GetProfileTimeout()))
	server.LogSessionTransitions(ctx, sessions)
	if err := sessions.Start(ctx); err != nil {
		log.Err(err).Msg("Stored session could not be restored, starting logged out")
	}

	handler, err := server.New(c, api, sessions, creds)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              c.GetListenAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(srv)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	returnError = shutdown(srv)
	sessions.Drain()
	return returnError
}

// openCredentials builds the configured credential store and a func releasing it.
func openCredentials(ctx context.Context, c config.Config) (credentials.Store, func(), error) {
	switch c.GetCredentialBackend() {
	case config.CredentialBackendRedis:
		rdb, err := redisstore.Connect(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis credential store")
		return redisstore.New(rdb, c.GetCredentialNamespace()), func() { _ = rdb.Close() }, nil
	case config.CredentialBackendFile:
		if c.GetCredentialSecret() == "" {
			return nil, nil, errors.New("CREDENTIAL_SECRET is required outside DEV")
		}
		store, err := filestore.Open(c.GetCredentialFile(), c.GetCredentialSecret())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("file", c.GetCredentialFile()).Msg("Using file credential store")
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown CREDENTIAL_BACKEND %q", c.GetCredentialBackend())
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Portal listening on http://%s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
