package auth

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// authenticatorFactories stores an internal mapping between authentication
// scheme names and their respective factories
var authenticatorFactories = make(map[string]AuthenticatorFactory)

// AuthenticatorFactory is a factory interface for creating Authenticators.
// Authenticators should call Register() with a factory to make the scheme
// available by name.
type AuthenticatorFactory interface {
	// Create returns a new Authenticator with the given parameters. The
	// provided client is used for the probe round trip. Each parameter key
	// must only consist of lowercase letters and numbers.
	Create(parameters map[string]interface{}, client *http.Client) (Authenticator, error)
}

// FactoryFunc adapts a function to the AuthenticatorFactory interface.
type FactoryFunc func(parameters map[string]interface{}, client *http.Client) (Authenticator, error)

// Create calls f.
func (f FactoryFunc) Create(parameters map[string]interface{}, client *http.Client) (Authenticator, error) {
	return f(parameters, client)
}

// Register makes an authenticator available by the provided name.
// If Register is called twice with the same name or if factory is nil, it panics.
func Register(name string, factory AuthenticatorFactory) {
	if factory == nil {
		panic("Must not provide nil AuthenticatorFactory")
	}
	if _, registered := authenticatorFactories[name]; registered {
		panic(fmt.Sprintf("AuthenticatorFactory named %s already registered", name))
	}

	authenticatorFactories[name] = factory
}

// Create a new Authenticator with the given scheme name and parameters. To
// use a scheme, its AuthenticatorFactory must first be registered with the
// given name. If no scheme is found, an InvalidAuthenticatorError is returned.
func Create(name string, parameters map[string]interface{}, client *http.Client) (Authenticator, error) {
	factory, ok := authenticatorFactories[name]
	if !ok {
		return nil, InvalidAuthenticatorError{name}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return factory.Create(parameters, client)
}

// Schemes lists the registered scheme names in sorted order.
func Schemes() []string {
	names := make([]string, 0, len(authenticatorFactories))
	for name := range authenticatorFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InvalidAuthenticatorError records an attempt to construct an unregistered
// authentication scheme
type InvalidAuthenticatorError struct {
	Name string
}

func (err InvalidAuthenticatorError) Error() string {
	return fmt.Sprintf("authentication scheme not registered: %s", err.Name)
}

// decodeParameters maps free-form configuration parameters onto an options
// struct. Unknown keys are rejected so that typos surface at startup.
func decodeParameters(parameters map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(parameters)
}
