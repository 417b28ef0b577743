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

package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestPollDoublesDelayAndStopsAtBound(t *testing.T) {
	g := NewWithT(t)

	rec := &recorder{}
	p := New(4, 10*time.Millisecond)
	p.Sleep = rec.sleep

	checks := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		checks++
		return false, nil
	})

	g.Expect(errors.Is(err, ErrExhausted)).To(BeTrue())
	g.Expect(checks).To(Equal(4))
	g.Expect(rec.delays).To(Equal([]time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
	}))
	g.Expect(p.Delays()).To(Equal(rec.delays))
}

func TestPollConfirmed(t *testing.T) {
	g := NewWithT(t)

	rec := &recorder{}
	p := New(5, time.Second)
	p.Sleep = rec.sleep

	checks := 0
	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		checks++
		return checks == 3, nil
	})

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(checks).To(Equal(3))
	g.Expect(rec.delays).To(Equal([]time.Duration{time.Second, 2 * time.Second}))
}

func TestPollReturnsConditionError(t *testing.T) {
	g := NewWithT(t)

	boom := errors.New("connection refused")
	p := New(5, time.Millisecond)
	p.Sleep = (&recorder{}).sleep

	err := p.Poll(context.Background(), func(ctx context.Context) (bool, error) {
		return false, boom
	})
	g.Expect(err).To(MatchError(boom))
}

func TestPollHonoursContext(t *testing.T) {
	g := NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(3, time.Hour)
	err := p.Poll(ctx, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	g.Expect(err).To(MatchError(context.Canceled))
}

func TestForTimeout(t *testing.T) {
	g := NewWithT(t)

	p := ForTimeout(3, time.Minute)
	g.Expect(p.Attempts).To(Equal(3))
	g.Expect(p.InitialDelay).To(Equal(15 * time.Second))
	g.Expect(p.Delays()).To(Equal([]time.Duration{15 * time.Second, 30 * time.Second}))

	p = ForTimeout(0, 0)
	g.Expect(p.Attempts).To(Equal(DefaultAttempts))
	g.Expect(p.InitialDelay).To(Equal(18750 * time.Millisecond))

	p = ForTimeout(1, time.Minute)
	g.Expect(p.InitialDelay).To(Equal(time.Minute))
	g.Expect(p.Delays()).To(BeEmpty())
}

func TestOnRetry(t *testing.T) {
	g := NewWithT(t)

	var remaining []int
	p := New(3, time.Millisecond)
	p.Sleep = (&recorder{}).sleep
	p.OnRetry = func(attemptsRemaining int, delay time.Duration) {
		remaining = append(remaining, attemptsRemaining)
	}

	_ = p.Poll(context.Background(), func(ctx context.Context) (bool, error) { return false, nil })
	g.Expect(remaining).To(Equal([]int{2, 1}))
}
