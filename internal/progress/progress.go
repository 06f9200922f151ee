// Package progress draws progress bars on a terminal stream.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Bar is a progress bar created on the first Start. A zero Bar is not
// usable; create one with New.
type Bar struct {
	mu    sync.Mutex
	w     io.Writer
	bar   *progressbar.ProgressBar
	label string
}

// New creates a bar that renders to w, usually os.Stderr.
func New(w io.Writer) *Bar {
	return &Bar{w: w}
}

// Start begins a bar with the given label and total. A non-positive total
// draws a spinner.
func (b *Bar) Start(label string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label = label
	b.bar = b.newBar(label, total)
}

func (b *Bar) newBar(label string, total int) *progressbar.ProgressBar {
	if total <= 0 {
		return progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetWidth(20),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(b.w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Tick advances the bar by one. Safe for concurrent use.
func (b *Bar) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

// Track follows a work tracker: the bar is sized by the first report and
// shows the last finished item. Its signature matches analyzer.ProgressFunc.
func (b *Bar) Track(current, total int, item string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		b.bar = b.newBar(b.label, total)
	}
	if b.label != "" {
		b.bar.Describe(fmt.Sprintf("%s %s", b.label, item))
	} else {
		b.bar.Describe(item)
	}
	_ = b.bar.Set(current)
}

// Finish clears the bar.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	_ = b.bar.Clear()
	b.bar = nil
}

// FinishError clears the bar and prints err below the label.
func (b *Bar) FinishError(err error) {
	b.Finish()
	fmt.Fprintf(b.w, "  %s error: %v\n", b.label, err)
}

// Label presets the description Track uses before any Start.
func (b *Bar) Label(label string) *Bar {
	b.mu.Lock()
	b.label = label
	b.mu.Unlock()
	return b
}
