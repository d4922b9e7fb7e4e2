package reconciler

import (
	"github.com/agentstation/pubmap/pkg/errors"
)

// options configures a reconciler.
type options struct {
	policy  NullPolicy
	aliases map[string]string
}

func defaultOptions() *options {
	return &options{
		policy:  NullKeep,
		aliases: DefaultAliases(),
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	return defaultOptions().apply(opts...)
}

// WithNullPolicy sets how missing key values are normalized.
func WithNullPolicy(policy NullPolicy) Option {
	return func(o *options) error {
		if _, err := ParseNullPolicy(string(policy)); err != nil {
			return err
		}
		o.policy = policy
		return nil
	}
}

// WithAliases adds column aliases on top of the defaults. Keys are matched
// after lower-casing and trimming.
func WithAliases(aliases map[string]string) Option {
	return func(o *options) error {
		for from, to := range aliases {
			if HeaderName(from) == "" || to == "" {
				return &errors.ValidationError{
					Field:   "aliases",
					Value:   aliases,
					Message: "alias names cannot be empty",
				}
			}
			o.aliases[HeaderName(from)] = to
		}
		return nil
	}
}
