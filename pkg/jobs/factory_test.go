// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/volworker/pkg/config"
)

func TestNewManager(t *testing.T) {
	cfg := config.DefaultWorkerConfig()

	mgr, err := NewManager(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, &MemoryManager{}, mgr)
	assert.Equal(t, cfg.ResultTTL, mgr.(*MemoryManager).resultTTL)

	mr := miniredis.RunT(t)
	cfg.Queue = "redis"
	cfg.RedisURL = "redis://" + mr.Addr()
	mgr, err = NewManager(cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	rm, ok := mgr.(*RedisManager)
	require.True(t, ok)
	assert.Equal(t, cfg.QueueName, rm.opts.QueueName)
	require.NoError(t, rm.Stop(context.Background()))

	cfg.Queue = "kafka"
	_, err = NewManager(cfg, nil, zerolog.Nop())
	require.Error(t, err)
}
