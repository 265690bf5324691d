//go:build !linux && !darwin

package device

func defaultInput() (format, device string) {
	return "dshow", "audio=default"
}
