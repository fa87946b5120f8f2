//go:build windows

package listener

func platformBackends() []Backend {
	return []Backend{hookBackend(), hotkeyBackend(keyStateToggles{})}
}

func Diagnose() (string, error) {
	return "low-level keyboard and mouse hooks available", nil
}
