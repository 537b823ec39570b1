package store

import (
	"sort"

	"github.com/lbatt/ledgersync"
)

// Listing order is stable so that batch sync outcomes and CLI output are
// reproducible across runs and store implementations.

func sortConnections(cs []*ledgersync.Connection) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Config.Name != cs[j].Config.Name {
			return cs[i].Config.Name < cs[j].Config.Name
		}
		return cs[i].State.ID < cs[j].State.ID
	})
}

func sortAccounts(as []*ledgersync.Account) {
	sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })
}
