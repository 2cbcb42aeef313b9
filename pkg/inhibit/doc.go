// Package inhibit delays system shutdown through [org.freedesktop.login1] inhibitor locks so the
// screensaver can be torn down first.
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
package inhibit
