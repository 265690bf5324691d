//go:build linux

package device

func defaultInput() (format, device string) {
	return "pulse", "default"
}
