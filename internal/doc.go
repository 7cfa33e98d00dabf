// Package internal contains the implementation packages of the sitecycle
// CLI.
//
// # Package Organization
//
// Site pipeline:
//
//   - build: esbuild bundling of entry points and page scripts, in memory
//   - manifest: build-manifest.json plus the HTML listing pages
//   - server: dev server holding the last good build and the reload hub
//   - watcher: debounced fsnotify watching of the source tree
//   - deploy: one-shot deploy hook client
//   - metrics: Prometheus recorder for builds, reload clients and requests
//
// Module runtime:
//
//   - dom: parsed page documents with element geometry
//   - viewport: scroll position plus intersection and progress observers
//   - lifecycle: mount, destroy, page-in and page-out hook lists
//   - modules: the identifier catalogue and data-module resolver
//   - modules/builtin: the units shipped with sitecycle
//   - store: typed observable key/value store shared by modules
//   - pages: the application root driving page transitions
//
// Shared:
//
//   - config, errors, logging, validation, version
//
// # Inter-Package Communication
//
//   - The watcher hands debounced batches to the server, which rebuilds
//     through build and writes through manifest
//   - A successful rebuild swaps the served snapshot and broadcasts a reload
//   - pages resolves modules against a catalogue, and modules register
//     their hooks and observers into lifecycle
//   - Observers attach to the viewport and are notified synchronously on
//     scroll and resize
package internal
