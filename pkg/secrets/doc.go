// Package secrets locks collections of a [org.freedesktop.Secret] provider, such as Gnome
// Keyring, KDE Wallet or keepassxc.
//
// Locking on screen lock means an unattended session does not hand out passwords.
//
// [org.freedesktop.Secret]: https://specifications.freedesktop.org/secret-service-spec/latest/
package secrets
