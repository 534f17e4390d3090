package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_pdfoverlay._tcp"

// Advertiser announces the service on the local network until Shutdown.
type Advertiser struct {
	srv *mdns.Server
}

// Advertise publishes the service on port. An empty instance uses the host
// name.
func Advertise(instance string, port int) (*Advertiser, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("mdns: hostname: %w", err)
		}
		instance = host
	}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, []string{"pdfoverlay"})
	if err != nil {
		return nil, fmt.Errorf("mdns: service: %w", err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("mdns: server: %w", err)
	}
	return &Advertiser{srv: srv}, nil
}

func (a *Advertiser) Shutdown() error {
	if a == nil || a.srv == nil {
		return nil
	}
	return a.srv.Shutdown()
}
