// Package jitter добавляет случайность в интервалы повторов,
// чтобы повторы разных клиентов не синхронизировались между собой.
package jitter

import (
	"math/rand"
	"time"
)

// DefaultJitter — стандартный коэффициент джиттера (50%)
const DefaultJitter = 0.5

// Duration возвращает длительность со случайной добавкой
// в диапазоне [d, d*(1+jitterFactor)].
func Duration(d time.Duration, jitterFactor float64) time.Duration {
	return d + time.Duration(rand.Float64()*jitterFactor*float64(d))
}

// ExponentialBackoff вычисляет паузу перед попыткой attempt (нумерация с нуля):
// base удваивается на каждую попытку, ограничивается max и размывается джиттером.
func ExponentialBackoff(base, max time.Duration, attempt int, jitterFactor float64) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff > max {
			backoff = max
			break
		}
	}

	return Duration(backoff, jitterFactor)
}
