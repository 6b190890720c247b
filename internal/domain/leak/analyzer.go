// Package leak detects recurring decision-error patterns in answered questions.
package leak

import (
	"context"
	"sync"
	"time"

	"github.com/okian/drillcore/internal/domain/bus"
	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/pkg/logger"
	"github.com/okian/drillcore/pkg/metrics"
)

const (
	defaultWindow    = 20
	defaultThreshold = 3
	source           = "leak"
)

// Publisher broadcasts detections. *bus.Bus satisfies it.
type Publisher interface {
	Emit(ctx context.Context, p model.Payload, source string) model.Event
}

// Record is one classified mistake held in the window.
type Record struct {
	Category  model.LeakCategory `json:"category"`
	Timestamp time.Time          `json:"timestamp"`
}

// Analyzer keeps the last W classified mistakes and flags a category once
// it appears T times. A flagged category stays active until Reset or Resolve.
type Analyzer struct {
	mu        sync.Mutex
	window    []Record
	active    map[model.LeakCategory]struct{}
	size      int
	threshold int

	pub Publisher
	log logger.Logger
	now func() time.Time
}

// NewAnalyzer creates an Analyzer publishing detections through pub.
func NewAnalyzer(pub Publisher, opts ...Option) *Analyzer {
	a := &Analyzer{
		active:    make(map[model.LeakCategory]struct{}),
		size:      defaultWindow,
		threshold: defaultThreshold,
		pub:       pub,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.threshold > a.size {
		a.threshold = a.size
	}
	return a
}

// Attach subscribes the analyzer to wrong answers on b.
func (a *Analyzer) Attach(b *bus.Bus) (detach func()) {
	return b.Subscribe(model.KindAnswerSubmitted, func(ctx context.Context, e model.Event) error {
		ans, ok := e.Payload.(model.AnswerSubmitted)
		if !ok || ans.IsCorrect || ans.ChosenAction == "" || ans.IdealAction == "" {
			return nil
		}
		a.Record(ctx, ans.ChosenAction, ans.IdealAction)
		return nil
	})
}

// Record classifies one mistake. It returns the detection it triggered, if any.
func (a *Analyzer) Record(ctx context.Context, chosen, ideal model.Action) *model.LeakDetected {
	category, ok := Classify(chosen, ideal)
	if !ok {
		return nil
	}

	a.mu.Lock()
	a.window = append(a.window, Record{Category: category, Timestamp: a.now()})
	if over := len(a.window) - a.size; over > 0 {
		a.window = append(a.window[:0:0], a.window[over:]...)
	}
	det := a.detectLocked(category)
	a.mu.Unlock()

	if det == nil {
		return nil
	}
	metrics.RecordLeakDetected(string(category))
	a.log.Info(ctx, "leak detected",
		logger.String("category", string(category)),
		logger.Int("count", det.Count),
	)
	if a.pub != nil {
		a.pub.Emit(ctx, *det, source)
	}
	return det
}

func (a *Analyzer) detectLocked(category model.LeakCategory) *model.LeakDetected {
	if _, active := a.active[category]; active {
		return nil
	}
	count := 0
	for _, r := range a.window {
		if r.Category == category {
			count++
		}
	}
	if count < a.threshold {
		return nil
	}
	a.active[category] = struct{}{}
	kept := a.window[:0]
	for _, r := range a.window {
		if r.Category != category {
			kept = append(kept, r)
		}
	}
	a.window = kept
	return &model.LeakDetected{
		Category:      category,
		Count:         count,
		RemediationID: RemediationID(category),
	}
}

// ActiveLeaks returns the active categories in declaration order.
func (a *Analyzer) ActiveLeaks() []model.LeakCategory {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.LeakCategory, 0, len(a.active))
	for _, c := range model.LeakCategories() {
		if _, ok := a.active[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Window returns a copy of the mistake window, oldest first.
func (a *Analyzer) Window() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Record(nil), a.window...)
}

// Resolve clears one active category so it can trigger again.
func (a *Analyzer) Resolve(category model.LeakCategory) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.active[category]; !ok {
		return false
	}
	delete(a.active, category)
	return true
}

// Reset empties the window and the active set.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.window = nil
	a.active = make(map[model.LeakCategory]struct{})
}
