package inspector

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/internal/pkg/utils/observer"
	"github.com/unbasical/update-agent/internal/pkg/utils/readerutils"
)

// DefaultInterval is the interval in which download progress is reported.
const DefaultInterval = 15 * time.Second

// ContentInspector wraps the body of a download.
// The returned io.ReadCloser has to be closed in place of the passed one.
type ContentInspector interface {
	InspectContents(rc io.ReadCloser, expectedSize int64) (io.ReadCloser, error)
}

// DownloadStatsObserver logs the progress of a download in regular intervals.
type DownloadStatsObserver struct {
	bytesRead atomic.Uint64
	name      string
	interval  time.Duration
}

// NewDownloadStatsObserver creates a DownloadStatsObserver which logs under the given name.
// A non-positive interval selects DefaultInterval.
func NewDownloadStatsObserver(name string, interval time.Duration) *DownloadStatsObserver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &DownloadStatsObserver{
		name:     name,
		interval: interval,
	}
}

// BytesRead returns the number of bytes that passed the most recently inspected stream.
func (d *DownloadStatsObserver) BytesRead() uint64 {
	return d.bytesRead.Load()
}

// InspectContents counts the bytes read from rc and logs them until the returned reader is closed.
// expectedSize is only used for the log output, -1 marks an unknown size.
func (d *DownloadStatsObserver) InspectContents(rc io.ReadCloser, expectedSize int64) (io.ReadCloser, error) {
	d.bytesRead.Store(0)
	stop := make(chan any)
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := ObserveDownloadStats(d.name, expectedSize, d.interval, &d.bytesRead, stop)
		if err != nil {
			log.Errorf("failed to observe download stats: %v", err)
		}
	}()
	var once sync.Once
	return readerutils.NewCleanupReadCloser(
		readerutils.NewCountingReader(rc, &d.bytesRead),
		rc,
		func() error {
			once.Do(func() {
				close(stop)
				wg.Wait()
			})
			return nil
		},
	), nil
}

// ObserveDownloadStats logs the value of p every interval until stop is closed.
func ObserveDownloadStats(name string, expectedSize int64, interval time.Duration, p *atomic.Uint64, stop <-chan any) error {
	var last uint64
	o := observer.IntervalObserver[*atomic.Uint64]{
		Interval: interval,
		F: func(p *atomic.Uint64) error {
			current := p.Load()
			rate := float64(current-last) / interval.Seconds()
			last = current
			entry := log.WithField("file", name).WithField("bytes", current)
			if expectedSize >= 0 {
				entry = entry.WithField("total", expectedSize)
			}
			entry.Infof("download progress (%.0f B/s)", rate)
			return nil
		},
		Observable: p,
	}
	return o.Observe(stop)
}
