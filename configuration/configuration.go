package configuration

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"
	"time"
)

// Configuration is a versioned client configuration, intended to be provided
// by a yaml file, and optionally modified by environment variables.
//
// Note that yaml field names should never include _ characters, since this is
// the separator used in environment variable names.
type Configuration struct {
	// Version is the version which defines the format of the rest of the configuration
	Version Version `yaml:"version"`

	// Log supports setting various parameters related to the logging
	// subsystem.
	Log Log `yaml:"log"`

	// Endpoint locates the name node.
	Endpoint Endpoint `yaml:"endpoint"`

	// Auth selects the authentication scheme used to obtain tokens. Exactly
	// one scheme may be configured; without one, requests carry no token.
	Auth Auth `yaml:"auth,omitempty"`

	// Credentials are presented to the authentication scheme.
	Credentials Credentials `yaml:"credentials,omitempty"`

	// HTTP tunes the transport used to reach the name node and data nodes.
	HTTP HTTP `yaml:"http,omitempty"`
}

// Log configures the logging subsystem.
type Log struct {
	// Level is the granularity at which operations are logged.
	Level Loglevel `yaml:"level,omitempty"`

	// Formatter overrides the default formatter with another. Options
	// include "text", "json" and "logstash".
	Formatter string `yaml:"formatter,omitempty"`

	// Fields allows users to specify static string fields to include in
	// the logger context.
	Fields map[string]interface{} `yaml:"fields,omitempty"`

	// ReportCaller allows user to configure the log to report the caller
	ReportCaller bool `yaml:"reportcaller,omitempty"`
}

// Endpoint locates the service.
type Endpoint struct {
	// URL is the service root, e.g. http://namenode:9870.
	URL string `yaml:"url"`

	// User is sent as user.name with every request. It is only meaningful
	// for the pseudo scheme or an unauthenticated cluster.
	User string `yaml:"user,omitempty"`
}

// Credentials identify the caller to the authentication scheme.
type Credentials struct {
	Principal string `yaml:"principal,omitempty"`
	Secret    string `yaml:"secret,omitempty"`
}

// HTTP holds transport tunables.
type HTTP struct {
	// ConnectTimeout bounds establishing a connection.
	ConnectTimeout time.Duration `yaml:"connecttimeout,omitempty"`

	// ReadTimeout bounds waiting for response headers.
	ReadTimeout time.Duration `yaml:"readtimeout,omitempty"`

	// ChunkSize is the unit in which bodies are streamed.
	ChunkSize int `yaml:"chunksize,omitempty"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `yaml:"useragent,omitempty"`
}

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 60 * time.Second
	defaultChunkSize      = 12288
	defaultLogLevel       = Loglevel("info")
	defaultLogFormatter   = "text"
)

// v0_1Configuration is a Version 0.1 Configuration struct
// This is currently aliased to Configuration, as it is the current version
type v0_1Configuration Configuration

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a string of the form X.Y into a Version, validating that X and Y can represent uints
func (version *Version) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var versionString string
	err := unmarshal(&versionString)
	if err != nil {
		return err
	}

	newVersion := Version(versionString)
	if _, err := newVersion.major(); err != nil {
		return err
	}

	if _, err := newVersion.minor(); err != nil {
		return err
	}

	*version = newVersion
	return nil
}

// CurrentVersion is the most recent Version that can be parsed
var CurrentVersion = MajorMinorVersion(0, 1)

// Loglevel is the level at which operations are logged
// This can be error, warn, info, or debug
type Loglevel string

// UnmarshalYAML implements the yaml.Umarshaler interface
// Unmarshals a string into a Loglevel, lowercasing the string and validating that it represents a
// valid loglevel
func (loglevel *Loglevel) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var loglevelString string
	err := unmarshal(&loglevelString)
	if err != nil {
		return err
	}

	loglevelString = strings.ToLower(loglevelString)
	switch loglevelString {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid loglevel %s Must be one of [error, warn, info, debug]", loglevelString)
	}

	*loglevel = Loglevel(loglevelString)
	return nil
}

// Parameters defines a key-value parameters mapping
type Parameters map[string]interface{}

// Auth defines the authentication scheme and its parameters.
type Auth map[string]Parameters

// Type returns the scheme name, such as pseudo or kerberos
func (auth Auth) Type() string {
	// Return only key in this map
	for k := range auth {
		return k
	}
	return ""
}

// Parameters returns the Parameters map for an Auth configuration
func (auth Auth) Parameters() Parameters {
	return auth[auth.Type()]
}

// setParameter changes the parameter at the provided key to the new value
func (auth Auth) setParameter(key string, value interface{}) {
	auth[auth.Type()][key] = value
}

// UnmarshalYAML implements the yaml.Unmarshaler interface
// Unmarshals a single item map into an Auth or a string into an Auth type with no parameters
func (auth *Auth) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var m map[string]Parameters
	err := unmarshal(&m)
	if err == nil {
		if len(m) > 1 {
			types := make([]string, 0, len(m))
			for k := range m {
				types = append(types, k)
			}
			return fmt.Errorf("must provide exactly one type. Provided: %v", types)
		}
		for k, params := range m {
			if params == nil {
				m[k] = Parameters{}
			}
		}
		*auth = m
		return nil
	}

	var authType string
	err = unmarshal(&authType)
	if err == nil {
		*auth = Auth{authType: Parameters{}}
		return nil
	}

	return err
}

// MarshalYAML implements the yaml.Marshaler interface
func (auth Auth) MarshalYAML() (interface{}, error) {
	if len(auth.Parameters()) == 0 {
		return auth.Type(), nil
	}
	return map[string]Parameters(auth), nil
}

// Parse parses an input configuration yaml document into a Configuration struct
// This should generally be capable of handling old configuration format versions
//
// Environment variables may be used to override configuration parameters other than version,
// following the scheme below:
// Configuration.Abc may be replaced by the value of WEBHDFS_ABC,
// Configuration.Abc.Xyz may be replaced by the value of WEBHDFS_ABC_XYZ, and so forth
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	p := NewParser("webhdfs", []VersionedParseInfo{
		{
			Version: MajorMinorVersion(0, 1),
			ParseAs: reflect.TypeOf(v0_1Configuration{}),
			ConversionFunc: func(c interface{}) (interface{}, error) {
				if v0_1, ok := c.(*v0_1Configuration); ok {
					if v0_1.Log.Level == Loglevel("") {
						v0_1.Log.Level = defaultLogLevel
					}
					if v0_1.Log.Formatter == "" {
						v0_1.Log.Formatter = defaultLogFormatter
					}
					if v0_1.HTTP.ConnectTimeout == 0 {
						v0_1.HTTP.ConnectTimeout = defaultConnectTimeout
					}
					if v0_1.HTTP.ReadTimeout == 0 {
						v0_1.HTTP.ReadTimeout = defaultReadTimeout
					}
					if v0_1.HTTP.ChunkSize == 0 {
						v0_1.HTTP.ChunkSize = defaultChunkSize
					}
					if err := validateEndpoint(v0_1.Endpoint); err != nil {
						return nil, err
					}
					if v0_1.HTTP.ChunkSize < 0 {
						return nil, fmt.Errorf("http.chunksize must be positive, got %d", v0_1.HTTP.ChunkSize)
					}
					return (*Configuration)(v0_1), nil
				}
				return nil, fmt.Errorf("expected *v0_1Configuration, received %#v", c)
			},
		},
	})

	config := new(Configuration)
	err = p.Parse(in, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

func validateEndpoint(endpoint Endpoint) error {
	if endpoint.URL == "" {
		return errors.New("no endpoint url provided")
	}
	u, err := url.Parse(endpoint.URL)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint url %q must use http or https", endpoint.URL)
	}
	return nil
}
