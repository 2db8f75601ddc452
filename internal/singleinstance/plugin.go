// Package singleinstance loads the optional single-instance plugin
// (spec.md §1: "the core only loads and validates the plugin and forwards a
// reference to boosters"). The original daemon dlopen's a shared object; the
// direct Go analogue is the standard library's plugin package, which is
// exactly the same "load a shared object, look up well-known symbols by
// name" model.
package singleinstance

import (
	"fmt"
	"plugin"

	"github.com/sirupsen/logrus"
)

// Plugin is the surface the core validates and forwards to boosters. The
// actual single-instance enforcement semantics belong to the plugin itself
// (spec.md §1 Non-goals); the core never calls Acquire directly.
type Plugin interface {
	// Acquire asks the plugin whether an application identified by appID
	// may start another instance. Boosters call this, not the core.
	Acquire(appID string) (bool, error)
}

// Load opens the shared object at path and looks up its "SingleInstance"
// symbol, which must implement Plugin.
//
// Plugin load failure is recoverable-logged, not fatal (spec.md §7): the
// daemon continues without single-instance support, returning a nil Plugin.
func Load(path string, log *logrus.Logger) Plugin {
	if path == "" {
		return nil
	}

	p, err := plugin.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("single-instance plugin load failed; continuing without it")
		return nil
	}

	sym, err := p.Lookup("SingleInstance")
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("single-instance plugin missing SingleInstance symbol; continuing without it")
		return nil
	}

	instance, ok := sym.(Plugin)
	if !ok {
		log.WithField("path", path).Warn("single-instance plugin does not implement Plugin; continuing without it")
		return nil
	}

	log.WithField("path", path).Info("single-instance plugin loaded")
	return instance
}

// Validate performs a cheap sanity call against the plugin so a broken
// implementation is caught at load time rather than at first use. Any error
// is treated the same as a load failure.
func Validate(p Plugin) error {
	if p == nil {
		return nil
	}
	if _, err := p.Acquire(""); err != nil {
		return fmt.Errorf("single-instance plugin validation call failed: %w", err)
	}
	return nil
}
