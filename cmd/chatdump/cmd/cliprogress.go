package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"chatdump/internal/extract"
)

// newCLIProgress returns a terminal progress reporter, or a no-op one when
// stdout is not a TTY (piped output should stay clean).
func newCLIProgress() extract.Progress {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return extract.NullProgress{}
	}
	return &cliProgress{}
}

// cliProgress implements extract.Progress for terminal output. OnFetched is
// called from pool workers, so the state is mutex-guarded.
type cliProgress struct {
	mu        sync.Mutex
	startTime time.Time
	lastPrint time.Time
	total     int
}

func (p *cliProgress) OnChannels(channels int) {
	fmt.Printf("Channel map loaded: %d channel(s)\n", channels)
}

func (p *cliProgress) OnConversations(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.startTime = now
	p.lastPrint = now
	p.total = total
	fmt.Printf("Fetching messages for %d conversation(s)\n", total)
}

func (p *cliProgress) OnFetched(done, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startTime.IsZero() {
		now := time.Now()
		p.startTime = now
		p.lastPrint = now
	}

	// Throttle output, but always print the final update.
	if time.Since(p.lastPrint) < time.Second && done < int64(p.total) {
		return
	}
	p.lastPrint = time.Now()

	elapsed := time.Since(p.startTime)
	rate := 0.0
	if elapsed.Seconds() >= 1 {
		rate = float64(done) / elapsed.Seconds()
	}

	fmt.Printf("\r  Conversations: %d/%d | Failed: %d | Rate: %.1f/s | Elapsed: %s    ",
		done, p.total, failed, rate, formatDuration(elapsed))
}

func (p *cliProgress) OnComplete(summary *extract.Summary) {
	fmt.Println() // Clear the progress line
}

// formatDuration formats a duration as "Xs", "Xm Ys" or "Xh Ym" for readability.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
