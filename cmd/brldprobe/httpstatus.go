// -*- Mode: Go; indent-tabs-mode: t -*-
package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/gobraille/brld/braille"
)

// statusResponse is what GET /status returns: just enough for a
// smoke test to confirm the handle opened against the right geometry.
type statusResponse struct {
	Driver   string          `json:"driver"`
	Geometry braille.Geometry `json:"geometry"`
}

// startStatusServer registers the status route and serves it in the
// background, grounded on the teacher's own initUpdate
// (update.go: "s.r.HandleFunc("/callback", callbackHandler)") but with
// a router of its own rather than reusing the EdgeX service's.
func startStatusServer(listen, driverName string, geometry braille.Geometry) {
	r := mux.NewRouter()
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusResponse{Driver: driverName, Geometry: geometry})
	})

	go func() {
		if err := http.ListenAndServe(listen, r); err != nil {
			logrus.WithError(err).Error("brldprobe: status server stopped")
		}
	}()
	logrus.WithField("listen", listen).Info("brldprobe: status server listening")
}
