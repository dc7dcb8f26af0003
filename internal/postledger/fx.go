package postledger

import (
	"github.com/smallbiznis/agencydesk/internal/postledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("postledger",
	fx.Provide(service.New),
)
