// Package config declares the process configuration. It is processed once at
// startup and handed to constructors; nothing else reads the environment.
package config

// Config holds every setting the service needs.
type Config struct {
	Addr                   string `envconfig:"ADDR" default:":3000"`
	LogLevel               string `envconfig:"LOG_LEVEL" default:"info"`
	SlackSigningSecret     string `envconfig:"SLACK_SIGNING_SECRET" required:"true"`
	SlackVerificationToken string `envconfig:"SLACK_VERIFICATION_TOKEN" required:"true"`
	SlackToken             string `envconfig:"SLACK_TOKEN" required:"true"`
	FlickrAPIKey           string `envconfig:"FLICKR_API_KEY" required:"true"`
}
