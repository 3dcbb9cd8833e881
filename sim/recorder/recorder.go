// Package recorder passively observes ring storages and writes every area
// flagged as new data to a long-form CSV stream (time_ns, storage, signal, value).
package recorder

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/cosim-dev/cosim/sim/storage"
)

// Columns is the header row of the result stream.
var Columns = []string{"time_ns", "storage", "signal", "value"}

// DefaultInterval is the polling period of the background collector.
const DefaultInterval = 5 * time.Millisecond

// RunHeader describes one recorded run. It is written next to the CSV data.
type RunHeader struct {
	RunID    string    `yaml:"run_id"`
	Method   string    `yaml:"method"`
	Start    uint64    `yaml:"start_ns"`
	Stop     uint64    `yaml:"stop_ns"`
	Timestep uint64    `yaml:"timestep_ns"`
	Storages []string  `yaml:"storages"`
	Created  time.Time `yaml:"created"`
}

// Recorder collects flagged areas. AddStorage must be called before Start.
type Recorder struct {
	id       uuid.UUID
	interval time.Duration
	log      *logrus.Entry

	mu       sync.Mutex // serializes collection and writes
	w        *csv.Writer
	storages []*storage.RingStorage
	rows     int
	err      error

	started bool
	quit    chan struct{}
	done    chan struct{}
}

// New creates a recorder writing to w. interval <= 0 uses DefaultInterval.
func New(w io.Writer, interval time.Duration) *Recorder {
	if interval <= 0 {
		interval = DefaultInterval
	}
	id := uuid.New()
	return &Recorder{
		id:       id,
		interval: interval,
		log:      logrus.WithField("recorder", id.String()[:8]),
		w:        csv.NewWriter(w),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// RunID identifies this recording.
func (r *Recorder) RunID() uuid.UUID { return r.id }

// AddStorage registers s to be watched.
func (r *Recorder) AddStorage(s *storage.RingStorage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storages = append(r.storages, s)
}

// Storages returns the names of the watched storages.
func (r *Recorder) Storages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.storages))
	for i, s := range r.storages {
		names[i] = s.Name()
	}
	return names
}

// Rows returns the number of data rows written so far.
func (r *Recorder) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Start writes the header row and launches the background collector.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("recorder %s already started", r.id)
	}
	r.started = true
	if err := r.w.Write(Columns); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("writing CSV header: %w", err)
	}
	r.mu.Unlock()

	go r.loop()
	r.log.Debugf("recording %d storages every %v", len(r.storages), r.interval)
	return nil
}

func (r *Recorder) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			r.collect()
		}
	}
}

// WaitUntilDone drains every flagged area before returning.
func (r *Recorder) WaitUntilDone() {
	r.collect()
}

// Stop ends the background collector, drains what is left and flushes.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		close(r.quit)
		<-r.done
	}
	r.collect()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	if err := r.w.Error(); err != nil && r.err == nil {
		r.err = err
	}
	r.log.Infof("recorded %d rows", r.rows)
	return r.err
}

type pending struct {
	s    *storage.RingStorage
	area int
	time uint64
}

func (r *Recorder) collect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.storages {
		if s.IsEmpty() {
			continue
		}
		var areas []pending
		for a := 0; a < s.Capacity(); a++ {
			if s.ConsumeNewData(a) {
				areas = append(areas, pending{s: s, area: a, time: s.Time(a)})
			}
		}
		sort.SliceStable(areas, func(i, j int) bool { return areas[i].time < areas[j].time })
		for _, p := range areas {
			r.writeArea(p)
		}
	}
}

func (r *Recorder) writeArea(p pending) {
	t := strconv.FormatUint(p.time, 10)
	for _, sig := range p.s.Signals() {
		row := []string{t, p.s.Name(), sig.Name, p.s.FormatItem(p.area, sig.Index)}
		if err := r.w.Write(row); err != nil {
			if r.err == nil {
				r.err = fmt.Errorf("writing CSV row: %w", err)
			}
			return
		}
		r.rows++
	}
}

// WriteHeader stores h as YAML at path.
func WriteHeader(path string, h RunHeader) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshaling run header: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing run header: %w", err)
	}
	return nil
}

// Row is one parsed data row.
type Row struct {
	Time    uint64
	Storage string
	Signal  string
	Value   string
}

// ReadRows parses a result stream written by a Recorder.
func ReadRows(in io.Reader) ([]Row, error) {
	reader := csv.NewReader(in)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	var rows []Row
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		if len(rec) != len(Columns) {
			return nil, fmt.Errorf("CSV row has %d columns, expected %d", len(rec), len(Columns))
		}
		t, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing time %q: %w", rec[0], err)
		}
		rows = append(rows, Row{Time: t, Storage: rec[1], Signal: rec[2], Value: rec[3]})
	}
	return rows, nil
}
