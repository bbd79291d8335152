/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package leadership

import "context"

// Leader reports leadership changes.
type Leader interface {
	LeaderCh() <-chan bool
}

// Follow runs term for as long as this instance leads. term's context is
// cancelled on demotion, when ctx is done, or when the leader channel
// closes, and Follow waits for term to return before acting on the next
// change.
func Follow(ctx context.Context, l Leader, term func(ctx context.Context)) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)
	end := func() {
		if cancel == nil {
			return
		}
		cancel()
		<-done
		cancel = nil
	}
	defer end()

	ch := l.LeaderCh()
	for {
		select {
		case <-ctx.Done():
			return
		case leader, ok := <-ch:
			if !ok {
				return
			}
			if !leader {
				end()
				continue
			}
			if cancel != nil {
				continue
			}
			var termCtx context.Context
			termCtx, cancel = context.WithCancel(ctx)
			done = make(chan struct{})
			go func(done chan struct{}) {
				defer close(done)
				term(termCtx)
			}(done)
		}
	}
}
