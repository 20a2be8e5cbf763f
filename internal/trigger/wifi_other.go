//go:build !darwin

package trigger

var probeSSID wifiProbe = probeIwgetid
