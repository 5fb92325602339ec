package main

import (
	"context"
	"fmt"
	"os"
	"time"

	logstash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/distribution/webhdfs/client"
	"github.com/distribution/webhdfs/client/auth"
	"github.com/distribution/webhdfs/client/transport"
	"github.com/distribution/webhdfs/configuration"
	"github.com/distribution/webhdfs/internal/dcontext"
	"github.com/distribution/webhdfs/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configurationPathEnv names the configuration file when --config is absent.
const configurationPathEnv = "WEBHDFS_CONFIGURATION_PATH"

type app struct {
	configPath  string
	showVersion bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "webhdfs",
		Short: "`webhdfs` runs file system operations against a WebHDFS service",
		Long: "`webhdfs` runs file system operations against a WebHDFS service.\n\n" +
			"The service endpoint, authentication scheme and transport settings are read\n" +
			"from a configuration file given with --config or " + configurationPathEnv + ".",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.showVersion {
				version.FprintVersion(cmd.OutOrStdout())
				return nil
			}
			return cmd.Usage()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path of the configuration file")
	root.Flags().BoolVarP(&a.showVersion, "version", "v", false, "show the version and exit")

	root.AddCommand(a.commands()...)
	return root
}

// connect loads the configuration, configures logging and returns a client
// for the configured endpoint.
func (a *app) connect(cmd *cobra.Command) (context.Context, *client.Client, error) {
	config, err := resolveConfiguration(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %v", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = dcontext.Background()
	}
	ctx = dcontext.WithVersion(ctx, version.Version())

	logrus.SetOutput(cmd.ErrOrStderr())
	ctx, err = configureLogging(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to configure logging with config: %s", err)
	}

	c, err := newClient(config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to construct client: %v", err)
	}
	return ctx, c, nil
}

func resolveConfiguration(configurationPath string) (*configuration.Configuration, error) {
	if configurationPath == "" {
		configurationPath = os.Getenv(configurationPathEnv)
	}

	if configurationPath == "" {
		return nil, fmt.Errorf("configuration path unspecified")
	}

	fp, err := os.Open(configurationPath)
	if err != nil {
		return nil, err
	}

	defer fp.Close()

	config, err := configuration.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %v", configurationPath, err)
	}

	return config, nil
}

// newClient maps the configuration onto client options. The user name is
// only sent for the pseudo scheme or an unauthenticated service.
func newClient(config *configuration.Configuration) (*client.Client, error) {
	opts := client.Options{
		Endpoint:       config.Endpoint.URL,
		AuthScheme:     config.Auth.Type(),
		AuthParameters: config.Auth.Parameters(),
		Credentials: auth.Credentials{
			Principal: config.Credentials.Principal,
			Secret:    config.Credentials.Secret,
		},
		Transport: transport.Config{
			ConnectTimeout: config.HTTP.ConnectTimeout,
			ReadTimeout:    config.HTTP.ReadTimeout,
			ChunkSize:      config.HTTP.ChunkSize,
			UserAgent:      config.HTTP.UserAgent,
		},
	}

	switch opts.AuthScheme {
	case "", "pseudo":
		opts.User = config.Endpoint.User
	default:
		if opts.Credentials.Principal == "" {
			opts.Credentials.Principal = config.Endpoint.User
		}
	}

	return client.New(opts)
}

// configureLogging prepares the context with a logger using the
// configuration.
func configureLogging(ctx context.Context, config *configuration.Configuration) (context.Context, error) {
	logrus.SetLevel(logLevel(config.Log.Level))
	logrus.SetReportCaller(config.Log.ReportCaller)

	formatter := config.Log.Formatter
	if formatter == "" {
		formatter = "text" // default formatter
	}

	switch formatter {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	case "logstash":
		logrus.SetFormatter(&logstash.LogstashFormatter{
			Formatter: &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano},
		})
	default:
		return ctx, fmt.Errorf("unsupported logging formatter: %q", config.Log.Formatter)
	}

	logrus.Debugf("using %q logging formatter", formatter)

	if len(config.Log.Fields) > 0 {
		// build up the static fields, if present.
		var fields []interface{}
		for k := range config.Log.Fields {
			fields = append(fields, k)
		}

		ctx = dcontext.WithValues(ctx, config.Log.Fields)
		ctx = dcontext.WithLogger(ctx, dcontext.GetLogger(ctx, fields...))
	}

	dcontext.SetDefaultLogger(dcontext.GetLogger(ctx))
	return ctx, nil
}

func logLevel(level configuration.Loglevel) logrus.Level {
	l, err := logrus.ParseLevel(string(level))
	if err != nil {
		l = logrus.InfoLevel
		logrus.Warnf("error parsing level %q: %v, using %q", level, err, l)
	}

	return l
}
