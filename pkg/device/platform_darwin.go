//go:build darwin

package device

func defaultInput() (format, device string) {
	return "avfoundation", ":0"
}
