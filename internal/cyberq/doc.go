// Package cyberq is a client for BBQ Guru CyberQ temperature controllers.
//
// A controller is polled over plain HTTP. Live readings come from status.xml;
// configuration comes either from config.xml (controllers on the local
// network) or, for controllers reached through the CyberQ Cloud relay, by
// scraping the form assignments embedded in control.htm, index.htm and
// system.htm. The mode is detected on the first refresh and never changes.
//
// # Sensors
//
// Every wire key the controller uses is described by a Descriptor in a
// Registry: its Kind (Boolean, Enum, Number, String, Timer, Temperature),
// bounds or options, whether it is read-only, an optional cloud alias and
// the page that accepts writes. Decoded values live in a Store, keyed by the
// canonical wire key:
//
//	client := cyberq.NewClient("192.168.1.50", cyberq.DefaultPort, nil)
//	snap, err := client.Refresh(ctx)
//	if err != nil {
//	    return err
//	}
//	pit, err := snap.Get("COOK_TEMP")
//	if cyberq.IsNotFoundError(err) {
//	    // not reported by this firmware
//	}
//
// Temperatures are reported in tenths of a degree Fahrenheit and written in
// whole degrees: status "3000" decodes to 300.0, and Set("COOK_SET", 300.0)
// posts COOK_SET=300.
//
// # Snapshots
//
// Refresh never mutates a Store it has returned. It clones the current
// snapshot, applies the new data and only then swaps it in, so a consumer
// can keep reading an older snapshot while the next refresh runs.
//
// # Errors
//
// All failures are *DeviceError values. IsTransportError, IsDecodeError,
// IsEncodeError and IsNotFoundError separate "cannot reach the controller"
// from "unexpected page content", "invalid value" and "sensor not present".
// The client never retries; callers poll again.
package cyberq
