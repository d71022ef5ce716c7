package serverapp

import (
	"fmt"
	"net"
	"os"
)

// Start binds the listen address and launches the HTTP server goroutine. It
// requires Init to have completed. A bind failure is returned directly so the
// process can exit before announcing the explorer.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	ln, err := net.Listen("tcp", a.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", a.srv.Addr, err)
	}
	a.listener = ln
	a.serverErrors = startServer(a.cfg, a.logger, a.srv, ln)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop waits for either an OS signal or a server error and reports
// which pathway ended the run.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}

	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("both stop and serverErrors channels are nil")
	}

	select {
	case err := <-serverErrors:
		if err == nil {
			return ReasonServerError, fmt.Errorf("server stopped unexpectedly")
		}
		return ReasonServerError, err
	case <-stop:
		return ReasonSignal, nil
	}
}
