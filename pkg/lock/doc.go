// Package lock provides screen lock events over D-Bus.
//
// Two sources are available:
//   - [NewLogindSource] follows a systemd-logind session using [org.freedesktop.login1].
//   - [NewScreenSaverSource] follows the ActiveChanged signal of the desktop's screensaver
//     service, [org.freedesktop.ScreenSaver] or org.gnome.ScreenSaver.
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
// [org.freedesktop.ScreenSaver]: https://specifications.freedesktop.org/idle-inhibit-spec/latest/
package lock
