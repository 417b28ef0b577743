/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package backoff implements a bounded exponential retry loop used to confirm
// asynchronous cluster state, such as a CRD being registered or removed.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	DefaultAttempts     = 5
	DefaultInitialDelay = 50 * time.Millisecond
	DefaultTimeout      = 5 * time.Minute
)

// ErrExhausted is returned when the condition was not met within the allowed attempts.
var ErrExhausted = errors.New("attempts exhausted")

// Condition reports whether the awaited state has been reached.
type Condition func(ctx context.Context) (bool, error)

// SleepFunc blocks for the given duration or until the context is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller checks a condition up to Attempts times,
// doubling the delay between consecutive checks.
type Poller struct {
	Attempts     int
	InitialDelay time.Duration

	// Sleep defaults to a context aware timer.
	Sleep SleepFunc

	// OnRetry is called before each sleep.
	OnRetry func(attemptsRemaining int, delay time.Duration)
}

// New returns a Poller for the given number of attempts and initial delay.
func New(attempts int, initialDelay time.Duration) *Poller {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Poller{
		Attempts:     attempts,
		InitialDelay: initialDelay,
	}
}

// ForTimeout returns a Poller whose initial delay is derived from the timeout
// so that the sum of all delays approximates it: timeout / 2^(attempts-1).
func ForTimeout(attempts int, timeout time.Duration) *Poller {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ms := math.Floor(float64(timeout.Milliseconds()) / math.Pow(2, float64(attempts-1)))
	return &Poller{
		Attempts:     attempts,
		InitialDelay: time.Duration(ms) * time.Millisecond,
	}
}

// Delays returns the sleep durations the poller would use if every check failed,
// callers log it before polling.
func (p *Poller) Delays() []time.Duration {
	steps := p.backoff()
	var delays []time.Duration
	for i := 1; i < p.Attempts; i++ {
		delays = append(delays, steps.Step())
	}
	return delays
}

// Poll runs the condition until it returns true, it returns an error,
// the attempts are exhausted or the context is cancelled.
func (p *Poller) Poll(ctx context.Context, condition Condition) error {
	steps := p.backoff()
	sleep := p.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	for attempt := 1; ; attempt++ {
		done, err := condition(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		remaining := p.Attempts - attempt
		if remaining <= 0 {
			return fmt.Errorf("%w after %d attempt(s)", ErrExhausted, attempt)
		}

		delay := steps.Step()
		if p.OnRetry != nil {
			p.OnRetry(remaining, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (p *Poller) backoff() *wait.Backoff {
	return &wait.Backoff{
		Duration: p.InitialDelay,
		Factor:   2,
		Steps:    math.MaxInt32,
	}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
