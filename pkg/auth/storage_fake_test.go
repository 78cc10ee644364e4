package auth_test

import "github.com/mindflowhq/identity/store/memory"

type fakeStorage = memory.Storage

func newFakeStorage() *fakeStorage {
	return memory.New()
}
