// Package host connects composition engines to text services: an IBus
// engine on the D-Bus session bus and a terminal front end built on tcell.
package host
