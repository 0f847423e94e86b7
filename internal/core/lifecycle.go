package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable modules receive their section of the modules: map, e.g.
// the node under "store.sqlite".
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules open their resources and publish services. A store
// module registers its store.Store here; the scheduler is wired only after
// every module is provisioned.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their settings once provisioned. Validate must
// not change state: `config check` runs it without starting anything.
type Validator interface {
	Validate() error
}

// Starter modules run background work: purge loops, the HTTP gateway.
// Start is called by the daemon only; a one-shot cycle never starts
// modules.
type Starter interface {
	Start() error
}

// Stopper modules release resources. Stop runs in reverse load order on
// shutdown, started or not.
type Stopper interface {
	Stop(ctx context.Context) error
}
