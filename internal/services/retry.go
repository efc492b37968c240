package services

import (
	"fmt"
	"time"
)

// ErrRetryBudgetExhausted is returned when the predicate never succeeded
// within the attempt budget.
var ErrRetryBudgetExhausted = fmt.Errorf("retry budget exhausted")

// pollUntil retries predicate with exponential backoff until it reports
// done, a hard error, or maxAttempts is spent. sleep is injectable so
// tests run without waiting; pass time.Sleep in production code.
func pollUntil(predicate func() (bool, error), maxAttempts int, backoff time.Duration, sleep func(time.Duration)) error {
	if sleep == nil {
		sleep = time.Sleep
	}
	delay := backoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		done, err := predicate()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt < maxAttempts {
			sleep(delay)
			delay *= 2
		}
	}
	return ErrRetryBudgetExhausted
}
