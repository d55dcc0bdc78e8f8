package litra

import (
	"regexp"
	"strconv"
	"strings"
)

// deviceLine matches one status line of the tool's device listing, e.g.
//
//	Device: Litra Glow | Power: on | Brightness: 50% | Temp: 4500K
var deviceLine = regexp.MustCompile(`(?i)^Device:\s*(?P<name>[^|]+?)\s*\|\s*Power:\s*(?P<power>on|off)\s*\|\s*Brightness:\s*(?P<bri>\d+)\s*%\s*\|\s*Temp(?:erature)?:\s*(?P<temp>\d+)\s*K$`)

// ParseDeviceState extracts the first recognized device from the tool's
// line-oriented status output. Output with no device line at all yields
// ErrNoDevice; a device line whose fields cannot be read yields *ParseError.
func ParseDeviceState(output string) (DeviceState, error) {
	sawDeviceLine := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := deviceLine.FindStringSubmatch(line)
		if m == nil {
			if strings.HasPrefix(strings.ToLower(line), "device:") {
				sawDeviceLine = true
			}
			continue
		}

		power := PowerOff
		if strings.EqualFold(m[2], "on") {
			power = PowerOn
		}
		bri, err := strconv.Atoi(m[3])
		if err != nil {
			return DeviceState{}, &ParseError{Output: output}
		}
		temp, err := strconv.Atoi(m[4])
		if err != nil {
			return DeviceState{}, &ParseError{Output: output}
		}
		return DeviceState{
			Name:        strings.TrimSpace(m[1]),
			Power:       power,
			Brightness:  bri,
			Temperature: temp,
		}, nil
	}

	if sawDeviceLine {
		// A device was listed but its fields were unreadable.
		return DeviceState{}, &ParseError{Output: output}
	}
	return DeviceState{}, ErrNoDevice
}
