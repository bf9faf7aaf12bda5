// Package server runs the webhook HTTP listener until its context is
// cancelled, then drains in-flight deliveries.
package server
