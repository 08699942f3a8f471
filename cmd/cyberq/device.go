package main

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/muurk/cyberq/internal/config"
	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/logging"
)

// target is a resolved controller address
type target struct {
	Host string
	Port int
}

func (t target) String() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// resolveTarget turns --device/--port into an address. Without --device,
// a registry holding exactly one controller is used.
func resolveTarget(reg *config.Registry) (target, error) {
	name := deviceTarget
	if name == "" {
		serials := make([]string, 0, len(reg.Devices))
		for serial, d := range reg.Devices {
			if d.Host != "" {
				serials = append(serials, serial)
			}
		}
		switch len(serials) {
		case 0:
			return target{}, errors.New("no controller specified: use --device <ip>, or run 'cyberq scan' first")
		case 1:
			name = serials[0]
		default:
			sort.Strings(serials)
			return target{}, fmt.Errorf("%d controllers are registered (%v): choose one with --device", len(serials), serials)
		}
	}

	host, port := reg.Resolve(name)
	if devicePort != 0 {
		port = devicePort
	}
	return target{Host: host, Port: port}, nil
}

// loadRegistry reads the device registry, falling back to an empty one so a
// corrupt file never blocks talking to a controller by IP.
func loadRegistry() *config.Registry {
	reg, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("Device registry unavailable", zap.Error(err))
		return config.NewRegistry()
	}
	return reg
}

// rememberDevice records where a controller answered
func rememberDevice(reg *config.Registry, id cyberq.Identity) {
	if id.SerialNumber == "" {
		return
	}
	reg.UpdateDeviceLastSeen(id.SerialNumber, id.Host, id.Port, id.Model, id.Cloud)
	if err := reg.Save(); err != nil {
		logging.Warn("Failed to save device registry", zap.Error(err))
	}
}

func connectTarget() (*cyberq.Client, *config.Registry, target, error) {
	reg := loadRegistry()
	t, err := resolveTarget(reg)
	if err != nil {
		return nil, nil, target{}, err
	}
	return cyberq.NewClient(t.Host, t.Port, nil), reg, t, nil
}
