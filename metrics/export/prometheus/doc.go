// Package prometheus renders authkit event counters in Prometheus text
// exposition format.
//
// [NewExporter] accepts an [authkit.Engine] and exposes an [http.Handler]
// serving all counters, prefixed authkit_*_total.
//
// Nothing is registered in a global Prometheus registry; callers mount
// the Handler themselves.
package prometheus
