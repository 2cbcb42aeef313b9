// Package screensaver turns screen lock notifications into [Event] values.
//
// The line decoder understands the output of dbus-monitor when it is watching the
// [org.gnome.ScreenSaver] ActiveChanged signal. Other packages, such as lock and idle, provide
// native implementations of [Source].
//
// [org.gnome.ScreenSaver]: https://wiki.gnome.org/Projects/GnomeScreensaver/DBusInterface
package screensaver
