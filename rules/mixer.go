//go:build ruleguard

// Package gorules contains custom linting rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// MixerLoopNoAlloc flags allocations in the mixer loop. The loop runs once
// per period on a SCHED_FIFO thread and works on buffers sized in New.
func MixerLoopNoAlloc(m dsl.Matcher) {
	m.Match(
		`make($*_)`,
		`append($*_)`,
		`new($_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/mixer$`) && m.File().Name.Matches(`^loop\.go$`)).
		Report("no allocation in the mixer loop; preallocate in New")

	m.Match(`fmt.$_($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/mixer$`) && m.File().Name.Matches(`^loop\.go$`)).
		Report("no formatting in the mixer loop; send an event to the monitor instead")
}

// MixerLoopNoLogging flags logger calls from the mixer loop. Device failures
// go through notify so the monitor goroutine logs them.
func MixerLoopNoLogging(m dsl.Matcher) {
	m.Match(
		`$log.Info($*_)`,
		`$log.Warn($*_)`,
		`$log.Error($*_)`,
		`$log.Debug($*_)`,
	).
		Where(m["log"].Type.Implements("github.com/tphakala/mixcore/internal/logger.Logger") &&
			m.File().PkgPath.Matches(`/internal/mixer$`) && m.File().Name.Matches(`^loop\.go$`)).
		Report("do not log from the mixer loop; use e.notify")
}

// MixerLoopNoBlocking flags calls that can park the mixer thread. The device
// write is the only place the loop may block.
func MixerLoopNoBlocking(m dsl.Matcher) {
	m.Match(
		`time.Sleep($_)`,
		`$mu.Lock()`,
		`<-$_`,
	).
		Where(m.File().PkgPath.Matches(`/internal/mixer$`) && m.File().Name.Matches(`^loop\.go$`)).
		Report("the mixer loop must not block outside Device.Write")
}
