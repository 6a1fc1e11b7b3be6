package modkit

import (
	phttp "rangeslicer/internal/platform/net/http"
)

// Module is the common surface of a wired service: routes for the status server
// and a port set main pulls runners from
type Module interface {
	// MountRoutes mounts HTTP routes under the provided router seam
	MountRoutes(r phttp.Router)

	// Ports returns the module specific port set
	Ports() any

	// Name returns the module name
	Name() string
}
