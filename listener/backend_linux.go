//go:build linux

package listener

func platformBackends() []Backend {
	return []Backend{evdevBackend()}
}
