package telemetry

import (
	"net/http"
	"net/http/pprof"
)

const debugPath = "/debug/pprof/"

// RegisterDebugHandlers adds pprof routes to mux. They are served next to
// /metrics so mixer thread stalls can be profiled in place.
func RegisterDebugHandlers(mux *http.ServeMux) {
	mux.HandleFunc(debugPath, pprof.Index)
	mux.HandleFunc(debugPath+"cmdline", pprof.Cmdline)
	mux.HandleFunc(debugPath+"profile", pprof.Profile)
	mux.HandleFunc(debugPath+"symbol", pprof.Symbol)
	mux.HandleFunc(debugPath+"trace", pprof.Trace)
	for _, name := range []string{"allocs", "goroutine", "heap", "threadcreate", "block", "mutex"} {
		mux.Handle(debugPath+name, pprof.Handler(name))
	}
}
