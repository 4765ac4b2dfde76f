package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"lockline/internal/config"
	"lockline/internal/logging"
)

// daqMonitor listens for udev netlink events so the daemon learns about
// acquisition hardware disappearing or returning without polling the bus.
type daqMonitor struct {
	match    string
	logger   *slog.Logger
	onAttach func(ctx context.Context)
	onDetach func(ctx context.Context)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// newDAQMonitor creates a monitor for the configured DAQ device. Returns nil
// when no udev match string is configured; the nil monitor is inert.
func newDAQMonitor(cfg *config.Config, logger *slog.Logger, onAttach, onDetach func(ctx context.Context)) *daqMonitor {
	if cfg == nil {
		return nil
	}
	match := strings.TrimSpace(cfg.DAQ.UdevDeviceMatch)
	if match == "" {
		return nil
	}
	return &daqMonitor{
		match:    match,
		logger:   logging.NewComponentLogger(logger, "daq-monitor"),
		onAttach: onAttach,
		onDetach: onDetach,
	}
}

// Start begins listening for udev netlink events.
func (m *daqMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; DAQ hot-plug detection disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "device detachment will only surface as scan failures"),
		)
		return nil // non-fatal, the rig reports connectivity errors itself
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("DAQ monitor started",
		logging.String(logging.FieldEventType, "daq_monitor_started"),
		logging.String("match", m.match),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *daqMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("DAQ monitor stopped",
		logging.String(logging.FieldEventType, "daq_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *daqMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *daqMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldImpact, "DAQ hot-plug events may be missed"),
			)
		}
	}
}

// buildMatcher selects USB attach/detach events; the device itself is picked
// out per event since udev match strings are substrings, not exact names.
func (m *daqMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "usb",
		},
	})
	return rules
}

func (m *daqMonitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	name := extractDeviceName(uevent)
	if !m.matchesDevice(uevent, name) {
		m.logger.Debug("ignoring event for unrelated device",
			logging.String("device", name),
			logging.String("action", string(uevent.Action)))
		return
	}

	m.logger.Info("DAQ device event",
		logging.String(logging.FieldEventType, "daq_device_event"),
		logging.String("device", name),
		logging.String("action", string(uevent.Action)))

	switch uevent.Action {
	case netlink.ADD:
		if m.onAttach != nil {
			m.onAttach(ctx)
		}
	case netlink.REMOVE:
		if m.onDetach != nil {
			m.onDetach(ctx)
		}
	}
}

// matchesDevice reports whether the uevent concerns the configured device.
// The match string is compared as a substring against the device name, the
// device path and the usb model identifiers.
func (m *daqMonitor) matchesDevice(uevent netlink.UEvent, name string) bool {
	if m.match == "" {
		return false
	}
	candidates := []string{
		name,
		uevent.Env["DEVPATH"],
		uevent.Env["PRODUCT"],
		uevent.Env["ID_MODEL"],
	}
	for _, c := range candidates {
		if c != "" && strings.Contains(c, m.match) {
			return true
		}
	}
	return false
}

// extractDeviceName gets the device path from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
