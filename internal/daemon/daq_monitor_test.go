package daemon

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"lockline/internal/config"
	"lockline/internal/logging"
)

func TestNewDAQMonitorRequiresMatchString(t *testing.T) {
	cfg := config.Default()
	cfg.DAQ.UdevDeviceMatch = ""
	if m := newDAQMonitor(&cfg, logging.NewNop(), nil, nil); m != nil {
		t.Fatal("expected nil monitor without a udev match")
	}

	// A nil monitor is inert.
	var m *daqMonitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("nil monitor start: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Fatal("nil monitor should not report running")
	}
}

func TestExtractDeviceName(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "devname preferred",
			env:  map[string]string{"DEVNAME": "/dev/usbtmc0", "DEVPATH": "/devices/usb1/1-2"},
			want: "/dev/usbtmc0",
		},
		{
			name: "devpath fallback",
			env:  map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-2/usbtmc0"},
			want: "/dev/usbtmc0",
		},
		{
			name: "no identifiers",
			env:  map[string]string{},
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := extractDeviceName(netlink.UEvent{Env: tc.env})
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMatchesDevice(t *testing.T) {
	cfg := config.Default()
	cfg.DAQ.UdevDeviceMatch = "usbtmc"
	m := newDAQMonitor(&cfg, logging.NewNop(), nil, nil)
	if m == nil {
		t.Fatal("expected a monitor")
	}

	hit := netlink.UEvent{Env: map[string]string{"DEVNAME": "/dev/usbtmc0"}}
	if !m.matchesDevice(hit, extractDeviceName(hit)) {
		t.Fatal("expected DEVNAME substring to match")
	}

	product := netlink.UEvent{Env: map[string]string{"PRODUCT": "usbtmc adapter"}}
	if !m.matchesDevice(product, extractDeviceName(product)) {
		t.Fatal("expected PRODUCT substring to match")
	}

	miss := netlink.UEvent{Env: map[string]string{"DEVNAME": "/dev/sda"}}
	if m.matchesDevice(miss, extractDeviceName(miss)) {
		t.Fatal("unrelated device should not match")
	}
}
