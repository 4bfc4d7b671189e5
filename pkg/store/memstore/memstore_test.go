package memstore

import (
	"testing"

	"github.com/harun/nodeshell/pkg/store"
	"github.com/harun/nodeshell/pkg/store/storetest"
)

func TestBackend(t *testing.T) {
	storetest.RunBackendTests(t, func(t *testing.T) store.Backend {
		return New()
	})
}
