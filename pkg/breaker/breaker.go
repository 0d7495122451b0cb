// Package breaker реализует circuit breaker для защиты от каскадных сбоев внешних сервисов.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/DRSN-tech/go-similarity/pkg/e"
)

// State — состояние автомата circuit breaker-а.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen возвращается без вызова обёрнутой операции, пока breaker открыт и cooldown не истёк.
var ErrOpen = e.Dependency("circuit breaker is open")

// Breaker отслеживает подряд идущие сбои обёрнутой операции.
// Переходы: Closed -> Open после failureThreshold подряд сбоев;
// Open -> HalfOpen по истечении cooldown с момента последнего сбоя;
// HalfOpen -> Closed после successThreshold подряд успехов,
// HalfOpen -> Open при единственном сбое.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	now func() time.Time
}

func New(failureThreshold, successThreshold int, cooldown time.Duration) *Breaker {
	const (
		defaultFailureThreshold = 5
		defaultSuccessThreshold = 2
		defaultCooldown         = 30 * time.Second
	)

	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	if successThreshold <= 0 {
		successThreshold = defaultSuccessThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// Do выполняет fn под защитой breaker-а.
// Пока breaker открыт и cooldown не истёк, возвращает ErrOpen, не вызывая fn.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

// State возвращает текущее состояние автомата.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.cooldown {
			return ErrOpen
		}
		// cooldown истёк — пробный вызов
		b.state = StateHalfOpen
		b.successes = 0
	}

	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.successThreshold {
				b.state = StateClosed
				b.failures = 0
				b.successes = 0
			}
		}
		return
	}

	b.lastFailure = b.now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
		b.failures = b.failureThreshold
	}
}
