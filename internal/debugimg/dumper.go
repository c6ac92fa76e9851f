// Package debugimg saves captured screen regions to disk in the background
// so OCR misreads can be inspected after a session.
package debugimg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/RLAlpha49/RL-Crate-Opener/constants"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
)

// Config describes where and how images are written.
type Config struct {
	Dir         string // root; images go to <Dir>/sessions/<SessionID>
	SessionID   string // if empty a new one is generated
	MaxImages   int    // per session, 0 = unlimited
	Format      constants.ImageFormat
	JPEGQuality int
}

// ConfigFrom builds a dumper config from the debug settings.
func ConfigFrom(c common.DebugConfig, sessionID string) Config {
	format, ok := constants.ParseImageFormat(c.ImageFormat)
	if !ok {
		format = constants.PNG
	}
	return Config{
		Dir:         c.Dir,
		SessionID:   sessionID,
		MaxImages:   c.MaxImages,
		Format:      format,
		JPEGQuality: c.JPEGQuality,
	}
}

type Dumper struct {
	cfg     Config
	dir     string
	logger  *slog.Logger
	workers int
	now     func() time.Time

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu       sync.Mutex
	closed   bool
	reserved int
}

var _ Queue = (*Dumper)(nil)

type Option func(*Dumper)

func WithWorkers(n int) Option {
	return func(d *Dumper) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dumper) {
		if n > 0 {
			d.ch = make(chan Job, n)
		}
	}
}

// WithClock sets the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(d *Dumper) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates the session directory and starts the writer goroutines.
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Dumper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		cfg.Dir = "debug_images"
	}
	if cfg.SessionID == "" {
		cfg.SessionID = common.NewSessionID()
	}
	if cfg.Format == "" {
		cfg.Format = constants.PNG
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 95
	}

	d := &Dumper{
		cfg:     cfg,
		dir:     filepath.Join(cfg.Dir, "sessions", cfg.SessionID),
		logger:  logger,
		workers: 1,
		now:     time.Now,
		ch:      make(chan Job, 32),
	}
	for _, o := range opts {
		o(d)
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}
	existing, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read debug dir: %w", err)
	}
	for _, e := range existing {
		if !e.IsDir() {
			d.reserved++
		}
	}

	d.start()
	return d, nil
}

// Dir is the session directory images are written to.
func (d *Dumper) Dir() string { return d.dir }

func (d *Dumper) start() {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go func(workerID int) {
				defer d.wg.Done()
				for job := range d.ch {
					path, err := d.write(job)
					if err != nil {
						d.logger.Warn("debugimg.save.failed", "worker_id", workerID, "label", job.Label, "error", err)
						continue
					}
					d.logger.Debug("debugimg.save.ok", "worker_id", workerID, "path", path, "format", d.cfg.Format)
				}
			}(i + 1)
		}
	})
}

// Enqueue schedules img for saving. It returns false once the session limit
// is reached or after Shutdown. A full queue blocks the caller.
func (d *Dumper) Enqueue(img image.Image, label string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("debugimg.enqueue.closed", "label", label)
		return false
	}
	if d.cfg.MaxImages > 0 && d.reserved >= d.cfg.MaxImages {
		d.logger.Debug("debugimg.enqueue.limit", "label", label, "max_images", d.cfg.MaxImages)
		return false
	}
	d.reserved++

	job := Job{Image: img, Label: label, SubmittedAt: d.now()}
	select {
	case d.ch <- job:
	default:
		d.logger.Warn("debugimg.queue.full", "label", label)
		d.ch <- job
	}
	return true
}

// Shutdown stops accepting images and waits for pending writes or ctx.
func (d *Dumper) Shutdown(ctx context.Context) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); d.wg.Wait() }()

	select {
	case <-ctx.Done():
		d.logger.Warn("debugimg.shutdown.interrupted")
	case <-done:
		d.logger.Debug("debugimg.shutdown.ok", "dir", d.dir)
	}
}

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileName is "<yyyymmdd_hhmmss_mmm>_<label>.<ext>".
func FileName(t time.Time, label string, format constants.ImageFormat) string {
	label = reUnsafe.ReplaceAllString(label, "_")
	if label == "" {
		label = "image"
	}
	ts := t.Format("20060102_150405") + fmt.Sprintf("_%03d", t.Nanosecond()/int(time.Millisecond))
	return ts + "_" + label + "." + format.Ext()
}

func (d *Dumper) write(job Job) (string, error) {
	if job.Image == nil {
		return "", errors.New("nil image")
	}
	name := FileName(job.SubmittedAt, job.Label, d.cfg.Format)
	path := filepath.Join(d.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	for i := 1; errors.Is(err, fs.ErrExist) && i < 100; i++ {
		path = filepath.Join(d.dir, fmt.Sprintf("%s_%d.%s", name[:len(name)-len(d.cfg.Format.Ext())-1], i, d.cfg.Format.Ext()))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	}
	if err != nil {
		return "", err
	}

	if d.cfg.Format == constants.JPEG {
		err = jpeg.Encode(f, job.Image, &jpeg.Options{Quality: d.cfg.JPEGQuality})
	} else {
		err = png.Encode(f, job.Image)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
