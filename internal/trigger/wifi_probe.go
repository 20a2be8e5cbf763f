// internal/trigger/wifi_probe.go
package trigger

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// parseAirport extracts the SSID from `airport -I` output. The first
// "SSID: " or "AirPort: " line decides; "AirPort: Off" means the radio is off.
func parseAirport(out []byte) (string, bool, error) {
	if !utf8.Valid(out) {
		return "", false, errors.New("non-UTF-8 output from airport utility")
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "AirPort: "):
			return "", false, nil
		case strings.HasPrefix(line, "SSID: "):
			return strings.TrimPrefix(line, "SSID: "), true, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", false, err
	}
	return "", false, errors.New("missing SSID or AirPort line in airport output")
}

// parseIwgetid reads the output of `iwgetid -r`, which is the bare SSID.
func parseIwgetid(out []byte) (string, bool, error) {
	if !utf8.Valid(out) {
		return "", false, errors.New("non-UTF-8 output from iwgetid")
	}
	ssid := strings.TrimRight(string(out), "\r\n")
	if ssid == "" {
		return "", false, nil
	}
	return ssid, true, nil
}

func probeAirport(ctx context.Context) (string, bool, error) {
	out, err := exec.CommandContext(ctx, airportPath, "-I").Output()
	if err != nil {
		return "", false, fmt.Errorf("running airport: %w", err)
	}
	return parseAirport(out)
}

// probeIwgetid treats exit status 255 with no output as "not associated",
// which is what iwgetid reports when no interface has an ESSID.
func probeIwgetid(ctx context.Context) (string, bool, error) {
	out, err := exec.CommandContext(ctx, "iwgetid", "-r").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 255 && len(bytes.TrimSpace(out)) == 0 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("running iwgetid: %w", err)
	}
	return parseIwgetid(out)
}
