// Package mdns advertises the bridge's HTTP API on the local network as a
// DNS-SD service (_hubspace-bridge._tcp) so hosts can find it without
// configuration.
package mdns
