package main

import (
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/pixpand/slack-flickr-unfurl/flickr"
	"github.com/pixpand/slack-flickr-unfurl/interaction"
	"github.com/pixpand/slack-flickr-unfurl/internal/config"
	"github.com/pixpand/slack-flickr-unfurl/internal/server"
	"github.com/pixpand/slack-flickr-unfurl/unfurl"
)

func main() {
	var cfg config.Config
	envconfig.MustProcess("", &cfg)

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "flickr-unfurl").Logger()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	} else {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
	}

	pipeline := &unfurl.Pipeline{
		Source:    flickr.New(cfg.FlickrAPIKey),
		Publisher: slack.New(cfg.SlackToken),
		Logger:    logger,
	}
	srv := &server.Server{
		SigningSecret: cfg.SlackSigningSecret,
		Unfurler:      pipeline,
		Interactions: &interaction.Handler{
			VerificationToken: cfg.SlackVerificationToken,
			Logger:            logger,
		},
		Logger: logger,
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Info().Str("addr", cfg.Addr).Msg("listening")
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
