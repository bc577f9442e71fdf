package observer

import "time"

// IntervalObserver periodically hands Observable to F until it is stopped.
// F is called once more after stop is closed so the last observed value is never lost.
type IntervalObserver[T any] struct {
	Interval   time.Duration
	F          func(T) error
	Observable T
}

// Observe blocks until stop is closed or F returns an error.
func (o *IntervalObserver[T]) Observe(stop <-chan any) error {
	ticker := time.NewTicker(o.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return o.F(o.Observable)
		case <-ticker.C:
			if err := o.F(o.Observable); err != nil {
				return err
			}
		}
	}
}
