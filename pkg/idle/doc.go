// Package idle treats an idle Wayland seat as a locked screen.
//
// It uses the [ext-idle-notify-v1] protocol; the compositor must support it.
//
// [ext-idle-notify-v1]: https://wayland.app/protocols/ext-idle-notify-v1
package idle
