package storages

import (
	"github.com/teris-io/shortid"
	"golang.org/x/exp/rand"
)

func NewID() string {
	return shortid.MustGenerate()
}

func init() {
	sid := shortid.MustNew(0, "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_.", rand.Uint64())
	shortid.SetDefault(sid)
}
