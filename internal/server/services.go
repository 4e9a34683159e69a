package server

import (
	"google.golang.org/grpc"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/service/block"
	"github.com/heartbeam/heartbeam/internal/service/discovery"
	"github.com/heartbeam/heartbeam/internal/service/match"
	"github.com/heartbeam/heartbeam/internal/service/messaging"
	"github.com/heartbeam/heartbeam/internal/service/wallet"
)

// ServiceSet bundles the domain services behind a single registrar so
// main only has to hand over the app context.
type ServiceSet struct {
	Discovery *discovery.Service
	Match     *match.Service
	Messaging *messaging.Service
	Wallet    *wallet.Service
	Block     *block.Service
}

func NewServiceSet(appCtx *app.AppContext) *ServiceSet {
	return &ServiceSet{
		Discovery: discovery.NewService(appCtx),
		Match:     match.NewService(appCtx),
		Messaging: messaging.NewService(appCtx),
		Wallet:    wallet.NewService(appCtx),
		Block:     block.NewService(appCtx),
	}
}

func (s *ServiceSet) Register(srv *grpc.Server) {
	// TODO: bind the generated proto stubs to each service once the
	// heartbeam.v1 protos are checked in and protoc-gen-go runs in CI.
}
