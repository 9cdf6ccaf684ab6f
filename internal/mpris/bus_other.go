//go:build !linux

package mpris

func connect() (Bus, error) {
	return nil, ErrUnavailable
}
