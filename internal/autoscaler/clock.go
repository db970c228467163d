// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package autoscaler

import "time"

// Clock is the autoscaler's time source, swapped for a fake in tests so a
// tick can be driven deterministically instead of waiting on a real ticker.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker mirrors the subset of *time.Ticker the autoscaler needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

// RealClock is the production Clock, backed by time.NewTicker.
var RealClock Clock = realClock{}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// ManualClock is a test Clock whose tickers only fire when Tick is called,
// removing real-time flakiness from autoscaler tests.
type ManualClock struct {
	tickers []*ManualTicker
}

func NewManualClock() *ManualClock {
	return &ManualClock{}
}

func (m *ManualClock) NewTicker(time.Duration) Ticker {
	t := &ManualTicker{ch: make(chan time.Time, 1)}
	m.tickers = append(m.tickers, t)
	return t
}

// Tick fires every ticker created on this clock, as if d had elapsed.
func (m *ManualClock) Tick(at time.Time) {
	for _, t := range m.tickers {
		select {
		case t.ch <- at:
		default:
		}
	}
}

type ManualTicker struct {
	ch      chan time.Time
	stopped bool
}

func (t *ManualTicker) C() <-chan time.Time { return t.ch }
func (t *ManualTicker) Stop()               { t.stopped = true }
