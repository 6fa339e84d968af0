package dataset

import (
	"sync"
	"time"

	"dataset-generator/internal/kandinsky"
)

// GenerationJob - отправленная задача. После создания не меняется.
type GenerationJob struct {
	ID          kandinsky.JobID
	Label       string
	Class       string
	SubmittedAt time.Time
}

// Ledger хранит label -> задачи в порядке отправки. Живет только в памяти процесса.
type Ledger struct {
	mu     sync.RWMutex
	jobs   map[string][]GenerationJob
	labels []string // порядок первого появления
}

func NewLedger() *Ledger {
	return &Ledger{jobs: make(map[string][]GenerationJob)}
}

func (l *Ledger) Record(job GenerationJob) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.jobs[job.Label]; !ok {
		l.labels = append(l.labels, job.Label)
	}
	l.jobs[job.Label] = append(l.jobs[job.Label], job)
}

// Jobs возвращает копию задач для label.
func (l *Ledger) Jobs(label string) []GenerationJob {
	l.mu.RLock()
	defer l.mu.RUnlock()

	jobs := l.jobs[label]
	out := make([]GenerationJob, len(jobs))
	copy(out, jobs)
	return out
}

// Labels возвращает метки в порядке первой отправки.
func (l *Ledger) Labels() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, len(l.labels))
	copy(out, l.labels)
	return out
}

// Len - число различных меток.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.jobs)
}

// JobIDs - снимок label -> идентификаторы задач.
func (l *Ledger) JobIDs() map[string][]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string][]string, len(l.jobs))
	for label, jobs := range l.jobs {
		ids := make([]string, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, string(j.ID))
		}
		out[label] = ids
	}
	return out
}
