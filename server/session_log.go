package server

import (
	"context"

	"github.com/jrsteele09/academy-portal/session"
	"github.com/rs/zerolog/log"
)

// Subscriber is the part of the session store the transition log needs.
type Subscriber interface {
	Subscribe() (<-chan session.Snapshot, func())
}

// LogSessionTransitions subscribes to sessions and logs every status or identity change until
// ctx is done. Only the role and username are logged. The returned channel is closed once the
// logger has stopped.
func LogSessionTransitions(ctx context.Context, sessions Subscriber) <-chan struct{} {
	updates, cancel := sessions.Subscribe()
	go func() {
		<-ctx.Done()
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		var last session.Snapshot
		for snap := range updates {
			if snap.Status == last.Status && snap.Identity == last.Identity {
				continue
			}
			last = snap
			log.Info().
				Stringer("status", snap.Status).
				Str("role", snap.Identity.Role).
				Str("username", snap.Identity.Username).
				Bool("reconciling", snap.Reconciling).
				Msg("session changed")
		}
	}()
	return done
}
