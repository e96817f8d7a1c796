package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"p1dlms/internal/pipeline"
)

func formatStatus(st pipeline.Stats) string {
	return fmt.Sprintf("\rframes: %d  readings: %d  dropped: %d  overflows: %d          ",
		st.Frames, st.Readings, st.Dropped, st.Overflows)
}

// runStatus redraws the live status line once a second until ctx is done.
func runStatus(ctx context.Context, w io.Writer, stats func() pipeline.Stats) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(w, formatStatus(stats()))
			fmt.Fprintln(w)
			return
		case <-ticker.C:
			fmt.Fprint(w, formatStatus(stats()))
		}
	}
}
