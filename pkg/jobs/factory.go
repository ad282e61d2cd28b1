// Copyright 2025 Volworker Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package jobs

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vulntor/volworker/pkg/config"
)

// NewManager builds the manager selected by cfg.Queue.
func NewManager(cfg config.WorkerConfig, handlers Handlers, logger zerolog.Logger) (Manager, error) {
	switch cfg.Queue {
	case "", "memory":
		return NewMemoryManager(cfg.Concurrency, handlers, logger, WithResultTTL(cfg.ResultTTL)), nil
	case "redis":
		return NewRedisManager(RedisOptionsFromConfig(cfg), handlers, logger)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue)
	}
}

// RedisOptionsFromConfig maps worker configuration to RedisOptions.
func RedisOptionsFromConfig(cfg config.WorkerConfig) RedisOptions {
	return RedisOptions{
		URL:         cfg.RedisURL,
		QueueName:   cfg.QueueName,
		KeyPrefix:   cfg.KeyPrefix,
		ResultTTL:   cfg.ResultTTL,
		Concurrency: cfg.Concurrency,
		Retry:       DefaultRetryConfig(),
	}
}
