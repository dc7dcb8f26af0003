package team

import (
	"github.com/smallbiznis/agencydesk/internal/team/service"
	"go.uber.org/fx"
)

var Module = fx.Module("team",
	fx.Provide(service.New),
)
