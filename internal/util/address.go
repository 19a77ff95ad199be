package util

import "strconv"

// FixListenAddress turns a bare port into a listen address, anything
// already carrying a host part is returned unchanged.
func FixListenAddress(address string) string {
	if address == "" {
		return ""
	}

	if _, err := strconv.Atoi(address); err == nil {
		return ":" + address
	}

	return address
}
