package httpapi

import (
	"time"

	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

// Options controls HTTP API runtime behavior.
type Options struct {
	// ReduceTimeout bounds a single /api/reduce request.
	ReduceTimeout time.Duration

	// MaxBodyBytes caps the request body. Default 8 MiB, the size of the
	// largest rule list the fetcher accepts.
	MaxBodyBytes int64

	// Rules is used when a request does not override the engine options.
	Rules *rules.Options
}

func (o Options) withDefaults() Options {
	if o.ReduceTimeout <= 0 {
		o.ReduceTimeout = 60 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 8 * 1024 * 1024
	}
	if o.Rules == nil {
		def := rules.DefaultOptions()
		o.Rules = &def
	}
	return o
}
