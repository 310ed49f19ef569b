package storage

import "context"

type prefixed struct {
	inner  Storage
	prefix string
}

// WithPrefix namespaces every key of inner, so several sessions can share one
// backend without seeing each other's snapshots.
func WithPrefix(inner Storage, prefix string) Storage {
	return &prefixed{inner: inner, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.inner.Set(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}
