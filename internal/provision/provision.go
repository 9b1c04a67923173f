// Package provision hands Wi-Fi credentials to an unconfigured thermostat
// over its temporary access point.
//
// The wire contract is the device's: a plain GET against a fixed
// local-network address with ssid, password, and fingerprint as query
// parameters. There is no transport encryption on the device AP; joining
// that network is a manual out-of-band step.
package provision

import "context"

// DefaultSetupURL is the provisioning endpoint the thermostat exposes
// while acting as its own access point.
const DefaultSetupURL = "http://192.168.4.1/setup"

// Credentials is the payload handed to the device.
type Credentials struct {
	SSID        string
	Password    string
	Fingerprint string
}

// Sender delivers credentials to the device.
type Sender interface {
	// SendCredentials performs the hand-off. An error is terminal for the
	// pairing attempt; the caller does not retry the local request.
	SendCredentials(ctx context.Context, creds Credentials) error
}
