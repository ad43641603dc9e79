// Bazaar - Offline-Resilient Marketplace Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bazaar

// Package network tracks whether the remote catalog is reachable.
//
// Monitor probes on an interval and runs as a suture service. Reconnect
// callbacks fire on every transition to online, including the first
// successful probe after start.
package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/bazaar/internal/config"
	"github.com/tomtom215/bazaar/internal/logging"
	"github.com/tomtom215/bazaar/internal/metrics"
)

// Probe checks reachability. A nil error means online.
type Probe interface {
	Ping(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

// Ping calls f.
func (f ProbeFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// HTTPProbe sends HEAD requests to a URL. Any HTTP answer counts as
// reachable; only transport failures mean offline.
type HTTPProbe struct {
	url    string
	client *http.Client
}

// NewHTTPProbe creates a probe for url.
func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	return &HTTPProbe{url: url, client: &http.Client{Timeout: timeout}}
}

// Ping implements Probe.
func (p *HTTPProbe) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

// Monitor is the connectivity monitor.
type Monitor struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	online   bool
	onlineCh chan struct{} // closed while online
	hooks    []func(context.Context)
}

// NewMonitor creates a monitor. It starts offline until the first probe
// succeeds.
func NewMonitor(probe Probe, cfg *config.NetworkConfig) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	metrics.NetworkOnline.Set(0)
	return &Monitor{
		probe:    probe,
		interval: interval,
		timeout:  timeout,
		logger:   logging.WithComponent("network"),
		onlineCh: make(chan struct{}),
	}
}

// OnReconnect registers fn to run on each offline→online transition.
// Hooks run sequentially on the monitor goroutine.
func (m *Monitor) OnReconnect(fn func(ctx context.Context)) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// WaitOnline blocks until the monitor observes connectivity or ctx ends.
func (m *Monitor) WaitOnline(ctx context.Context) error {
	m.mu.Lock()
	ch := m.onlineCh
	online := m.online
	m.mu.Unlock()
	if online {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Check runs one probe, updates state and fires reconnect hooks on a
// transition to online. It returns the new state.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.probe.Ping(probeCtx)
	cancel()

	// A probe cut short by shutdown says nothing about the network.
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		return m.Online()
	}

	online := err == nil
	m.mu.Lock()
	changed := online != m.online
	m.online = online
	var hooks []func(context.Context)
	if changed {
		if online {
			close(m.onlineCh)
			hooks = append(hooks, m.hooks...)
		} else {
			m.onlineCh = make(chan struct{})
		}
	}
	m.mu.Unlock()

	if !changed {
		return online
	}
	metrics.SetNetworkOnline(online)
	if online {
		m.logger.Info().Msg("Remote catalog reachable")
		for _, hook := range hooks {
			m.runHook(ctx, hook)
		}
	} else {
		m.logger.Warn().Err(err).Msg("Remote catalog unreachable")
	}
	return online
}

func (m *Monitor) runHook(ctx context.Context, hook func(context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error().Interface("panic", p).Msg("Reconnect hook panicked")
		}
	}()
	hook(ctx)
}

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.interval).Msg("Connectivity monitor starting")
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (m *Monitor) String() string {
	return "network-monitor"
}
