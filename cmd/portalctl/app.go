package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/application/usecase"
	"github.com/hiprotech/portal/infrastructure/adapter/tokenstore"
	"github.com/hiprotech/portal/infrastructure/config"
	"github.com/hiprotech/portal/infrastructure/http/gateway"
	"github.com/hiprotech/portal/infrastructure/service/clock"
	"github.com/hiprotech/portal/infrastructure/service/jwt"
	"github.com/hiprotech/portal/infrastructure/service/logger"
)

const sessionEndedNotice = "session ended, please log in"

// app is one invocation's session: a token store, the session state over
// it and an auth use case that talks to the backend through the gateway.
type app struct {
	clock   clock.Clock
	codec   *jwt.Codec
	store   outbound.TokenStore
	state   *usecase.SessionState
	gateway *gateway.Gateway
	auth    *usecase.AuthUseCase
	logger  logger.Logger
	opts    *options
	closers []func() error
}

func newApp(ctx context.Context, opts *options, stderr io.Writer) (*app, error) {
	log := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       opts.logLevel,
		Format:      "text",
		ServiceName: appName,
		Output:      stderr,
	})

	clk := clock.Real()
	codec := jwt.NewCodec(clk, opts.buffer)
	a := &app{clock: clk, codec: codec, logger: log, opts: opts}

	switch strings.ToLower(opts.store) {
	case config.StoreFile:
		a.store = tokenstore.NewFileStore(profilePath(opts.tokenFile, opts.profile), codec, log)
	case config.StoreRedis:
		rs, err := tokenstore.NewRedisStoreFromURL(ctx, opts.redisURL, "portal:"+opts.profile, codec, log)
		if err != nil {
			return nil, err
		}
		a.store = rs
		a.closers = append(a.closers, rs.Close)
	case config.StoreMemory:
		a.store = tokenstore.NewMemoryStore(codec, log)
	default:
		return nil, fmt.Errorf("unknown token store %q", opts.store)
	}

	gw, err := gateway.New(gateway.Config{BaseURL: opts.apiURL, Timeout: opts.timeout}, a.store, log)
	if err != nil {
		return nil, err
	}
	a.gateway = gw.WithNavigator(gateway.NavigatorFunc(func(context.Context) {
		fmt.Fprintln(stderr, sessionEndedNotice)
	}))
	a.state = usecase.NewSessionState(a.store, codec, log)
	a.auth = usecase.NewAuthUseCase(a.gateway, a.state, log)
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(context.Background(), "Failed to close token store", map[string]interface{}{"error": err.Error()})
		}
	}
}

// profilePath keeps the default profile at path and puts named profiles
// next to it.
func profilePath(path, profile string) string {
	if profile == "" || profile == "default" {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + profile + ext
}

// run builds the app for cmd and hands it to fn.
func run(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
