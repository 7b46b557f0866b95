// Package window manages window lifecycle and geometry persistence.
//
// Windows are created hidden and shown once their content signals
// ready-to-show. Geometry is restored from the state store on creation and
// persisted back on move, resize, maximize-toggle and close. Move and resize
// writes are debounced through a single per-window timer; close flushes
// synchronously. While a window is maximized the persisted snapshot keeps the
// last restored bounds rather than the OS-reported maximized bounds.
package window
