package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string                     { return string(n) }
func (n namedJob) Run(context.Context) (int, error) { return 0, nil }

func TestRegistryKeepsFirstJobPerName(t *testing.T) {
	expiry := namedJob("booking-expiry")
	retention := namedJob("outbox-retention")

	registry := NewRegistry(expiry, nil, retention, namedJob("booking-expiry"))

	jobs := registry.Jobs()
	require.Equal(t, []Job{expiry, retention}, jobs)

	jobs[0] = nil
	require.Equal(t, expiry, registry.Jobs()[0], "Jobs must hand out a copy")
}
