package realtime

import "context"

// LocalTransport delivers envelopes to connections registered in this
// process.
type LocalTransport struct {
	registry *Registry
}

func NewLocalTransport(registry *Registry) *LocalTransport {
	return &LocalTransport{registry: registry}
}

func (t *LocalTransport) Publish(_ context.Context, env Envelope) error {
	t.registry.Deliver(env)
	return nil
}

func (t *LocalTransport) Name() string { return "local" }
