// Package server implements the datagram listener that persists submissions,
// the sender used to relay them, and the HTTP plumbing shared by the public
// site and the monitoring API.
package server
