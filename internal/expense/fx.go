package expense

import (
	"github.com/smallbiznis/agencydesk/internal/expense/service"
	"go.uber.org/fx"
)

var Module = fx.Module("expense",
	fx.Provide(service.New),
)
