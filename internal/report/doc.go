// Package report renders pipeline output for humans: PNG plots of
// smoothed tracks and mapper reprojection quality, and the text tables
// the command-line tools print. Plot builders return a *plot.Plot so
// callers can save to disk or stream PNG bytes over HTTP.
package report
