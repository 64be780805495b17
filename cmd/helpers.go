package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/blue-raster/workforce-bridge/internal/config"
	"github.com/blue-raster/workforce-bridge/internal/dispatch"
	"github.com/blue-raster/workforce-bridge/internal/runlog"
	"github.com/blue-raster/workforce-bridge/pkg/arcgis"
	"github.com/blue-raster/workforce-bridge/pkg/mailer"
)

// initStore opens and migrates the run log configured in cfg.
func initStore(ctx context.Context) (runlog.Store, error) {
	st, err := runlog.Open(ctx, runlog.Config{
		Driver:      cfg.RunLog.Driver,
		Path:        cfg.RunLog.Path,
		DatabaseURL: cfg.RunLog.DatabaseURL,
	})
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate run log")
	}
	return st, nil
}

// newFeatureClient builds the feature-service client from config.
func newFeatureClient(c *config.Config) arcgis.Client {
	opts := []arcgis.Option{
		arcgis.WithTimeout(time.Duration(c.Poll.TimeoutSecs) * time.Second),
	}
	if c.Poll.RequestsPerSec > 0 {
		opts = append(opts, arcgis.WithRateLimit(c.Poll.RequestsPerSec))
	}
	if c.Auth.TokenURL != "" {
		opts = append(opts, arcgis.WithTokenAuth(c.Auth.TokenURL, c.Auth.Username, c.Auth.Password, c.Auth.Referer))
	}
	return arcgis.New(opts...)
}

func newSender(c *config.Config) *mailer.SMTPSender {
	return mailer.NewSMTP(mailer.Config{
		Host:     c.Notify.SMTPHost,
		Port:     c.Notify.SMTPPort,
		Username: c.Notify.SMTPUser,
		Password: c.Notify.SMTPPassword,
		From:     c.Notify.From,
		To:       c.Notify.To,
	})
}

// initRunner wires the full collaborator set. The caller closes the
// returned store.
func initRunner(ctx context.Context) (*dispatch.Runner, runlog.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	r, err := dispatch.New(cfg, newFeatureClient(cfg), newSender(cfg), st)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return r, st, nil
}
