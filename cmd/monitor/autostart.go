package main

import (
	"context"

	"go.uber.org/zap"
)

type starter interface {
	Start(ctx context.Context) error
}

// autoStart runs s.Start, including its synchronous first tick, in the
// background. The returned channel is closed once Start has returned.
func autoStart(ctx context.Context, s starter, log *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.Start(ctx); err != nil {
			// the API can start it later once settings are fixed
			log.Error("scheduler start", zap.Error(err))
		}
	}()
	return done
}

func closedChan() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
