package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/snapetech/hlsstitch/internal/job"
)

// statusPrinter returns a state listener that prints each new status line once.
func statusPrinter(w io.Writer) func(job.Snapshot) {
	var mu sync.Mutex
	last := ""
	return func(s job.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Status == "" || s.Status == last {
			return
		}
		last = s.Status
		fmt.Fprintln(w, s.Status)
	}
}
