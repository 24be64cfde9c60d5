package app

import (
	"net"
	"net/http"

	// Required for profiling
	_ "net/http/pprof"

	"github.com/Hoosat-Oy/htnupow/util/panics"
)

// startProfiling serves the pprof handlers on localhost:port.
func startProfiling(port string) {
	spawn("app.startProfiling", func() {
		listenAddr := net.JoinHostPort("localhost", port)
		log.Infof("Profile server listening on %s", listenAddr)
		profileRedirect := http.RedirectHandler("/debug/pprof", http.StatusSeeOther)
		http.Handle("/", profileRedirect)
		log.Error(http.ListenAndServe(listenAddr, nil))
	})
}

var spawn = panics.GoroutineWrapperFunc(log)
