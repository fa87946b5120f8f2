//go:build darwin

package listener

func platformBackends() []Backend {
	return []Backend{gohookBackend(), hotkeyBackend(noToggles{})}
}

func Diagnose() (string, error) {
	return "gohook event tap available (grant Accessibility permission if keys are not seen)", nil
}
